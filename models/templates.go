package models

// PlanTemplate is a ready-made creation request clients can start from.
type PlanTemplate struct {
	Key         string       `json:"key"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Spec        NewHousePlan `json:"spec"`
}

func room(name string, t RoomType, length, width float64) NewRoom {
	return NewRoom{Name: name, Type: t, Length: length, Width: width, Height: 3}
}

// Templates returns fresh copies every call.
func Templates() []PlanTemplate {
	return []PlanTemplate{
		{
			Key:         "bungalow_2_bed",
			Title:       "Two bedroom bungalow",
			Description: "65 m2 single storey family house",
			Spec: NewHousePlan{
				Name:      "Two bedroom bungalow",
				HouseType: HouseTypeBungalow,
				Location:  RegionCentre,
				Floors: []NewFloor{{
					FloorNumber: 0,
					FloorName:   "Ground floor",
					Rooms: []NewRoom{
						room("Living Room", RoomTypeLivingRoom, 5, 4),
						room("Bedroom 1", RoomTypeBedroom, 4, 3.5),
						room("Bedroom 2", RoomTypeBedroom, 4, 3.5),
						room("Kitchen", RoomTypeKitchen, 4, 3),
						room("Bathroom", RoomTypeBathroom, 2.5, 2),
					},
				}},
				FoundationType: "strip",
				WallType:       "cement_block",
				RoofingType:    "aluminium_sheet",
				FinishingLevel: FinishingLevelStandard,
			},
		},
		{
			Key:         "duplex_4_bed",
			Title:       "Four bedroom duplex",
			Description: "Two storeys, living areas downstairs and bedrooms upstairs",
			Spec: NewHousePlan{
				Name:      "Four bedroom duplex",
				HouseType: HouseTypeDuplex,
				Location:  RegionLittoral,
				Floors: []NewFloor{
					{
						FloorNumber: 0,
						FloorName:   "Ground floor",
						Rooms: []NewRoom{
							room("Living Room", RoomTypeLivingRoom, 6, 5),
							room("Dining Room", RoomTypeDiningRoom, 4, 4),
							room("Kitchen", RoomTypeKitchen, 4, 3.5),
							room("Guest Toilet", RoomTypeToilet, 2, 1.5),
							room("Garage", RoomTypeGarage, 6, 3.5),
						},
					},
					{
						FloorNumber: 1,
						FloorName:   "First floor",
						Rooms: []NewRoom{
							room("Master Bedroom", RoomTypeBedroom, 5, 4),
							room("Bedroom 2", RoomTypeBedroom, 4, 3.5),
							room("Bedroom 3", RoomTypeBedroom, 4, 3.5),
							room("Bedroom 4", RoomTypeBedroom, 3.5, 3.5),
							room("Bathroom", RoomTypeBathroom, 3, 2.5),
							room("Balcony", RoomTypeBalcony, 4, 1.5),
						},
					},
				},
				FoundationType: "raft",
				WallType:       "cement_block",
				RoofingType:    "clay_tile",
				FinishingLevel: FinishingLevelLuxury,
			},
		},
		{
			Key:         "apartment_studio",
			Title:       "Studio apartment",
			Description: "Compact unit on an upper floor",
			Spec: NewHousePlan{
				Name:      "Studio apartment",
				HouseType: HouseTypeApartment,
				Location:  RegionWest,
				Floors: []NewFloor{{
					FloorNumber: 2,
					FloorName:   "Second floor",
					Rooms: []NewRoom{
						room("Studio", RoomTypeLivingRoom, 6, 4.5),
						room("Kitchenette", RoomTypeKitchen, 2.5, 2),
						room("Shower Room", RoomTypeBathroom, 2, 2),
					},
				}},
				FoundationType: "pad",
				WallType:       "burnt_brick",
				RoofingType:    "concrete_slab",
				FinishingLevel: FinishingLevelBasic,
			},
		},
	}
}
