package models

type HouseType string

const (
	HouseTypeBungalow   HouseType = "bungalow"
	HouseTypeDuplex     HouseType = "duplex"
	HouseTypeMultiStory HouseType = "multi_story"
	HouseTypeApartment  HouseType = "apartment"
)

func (t HouseType) IsValid() bool {
	switch t {
	case HouseTypeBungalow, HouseTypeDuplex, HouseTypeMultiStory, HouseTypeApartment:
		return true
	}
	return false
}

func HouseTypes() []HouseType {
	return []HouseType{HouseTypeBungalow, HouseTypeDuplex, HouseTypeMultiStory, HouseTypeApartment}
}

// Region is the plan location, used for regional unit prices.
type Region string

const (
	RegionCentre    Region = "centre"
	RegionLittoral  Region = "littoral"
	RegionWest      Region = "west"
	RegionNorthWest Region = "north_west"
	RegionSouthWest Region = "south_west"
	RegionSouth     Region = "south"
	RegionEast      Region = "east"
	RegionAdamawa   Region = "adamawa"
	RegionNorth     Region = "north"
	RegionFarNorth  Region = "far_north"
)

func (r Region) IsValid() bool {
	switch r {
	case RegionCentre, RegionLittoral, RegionWest, RegionNorthWest, RegionSouthWest,
		RegionSouth, RegionEast, RegionAdamawa, RegionNorth, RegionFarNorth:
		return true
	}
	return false
}

func Regions() []Region {
	return []Region{
		RegionCentre, RegionLittoral, RegionWest, RegionNorthWest, RegionSouthWest,
		RegionSouth, RegionEast, RegionAdamawa, RegionNorth, RegionFarNorth,
	}
}

type RoomType string

const (
	RoomTypeBedroom    RoomType = "bedroom"
	RoomTypeLivingRoom RoomType = "living_room"
	RoomTypeKitchen    RoomType = "kitchen"
	RoomTypeBathroom   RoomType = "bathroom"
	RoomTypeDiningRoom RoomType = "dining_room"
	RoomTypeOffice     RoomType = "office"
	RoomTypeStore      RoomType = "store"
	RoomTypeBalcony    RoomType = "balcony"
	RoomTypeToilet     RoomType = "toilet"
	RoomTypeCorridor   RoomType = "corridor"
	RoomTypeGarage     RoomType = "garage"
	RoomTypeLaundry    RoomType = "laundry"
	RoomTypeOther      RoomType = "other"
)

func (t RoomType) IsValid() bool {
	switch t {
	case RoomTypeBedroom, RoomTypeLivingRoom, RoomTypeKitchen, RoomTypeBathroom, RoomTypeDiningRoom,
		RoomTypeOffice, RoomTypeStore, RoomTypeBalcony, RoomTypeToilet, RoomTypeCorridor,
		RoomTypeGarage, RoomTypeLaundry, RoomTypeOther:
		return true
	}
	return false
}

func RoomTypes() []RoomType {
	return []RoomType{
		RoomTypeBedroom, RoomTypeLivingRoom, RoomTypeKitchen, RoomTypeBathroom, RoomTypeDiningRoom,
		RoomTypeOffice, RoomTypeStore, RoomTypeBalcony, RoomTypeToilet, RoomTypeCorridor,
		RoomTypeGarage, RoomTypeLaundry, RoomTypeOther,
	}
}

type FinishingLevel string

const (
	FinishingLevelBasic    FinishingLevel = "basic"
	FinishingLevelStandard FinishingLevel = "standard"
	FinishingLevelLuxury   FinishingLevel = "luxury"
)

func (l FinishingLevel) IsValid() bool {
	return l.Rank() > 0
}

// Rank orders finishing levels from cheapest (1) to most expensive; 0 is unknown.
func (l FinishingLevel) Rank() int {
	switch l {
	case FinishingLevelBasic:
		return 1
	case FinishingLevelStandard:
		return 2
	case FinishingLevelLuxury:
		return 3
	}
	return 0
}

func FinishingLevels() []FinishingLevel {
	return []FinishingLevel{FinishingLevelBasic, FinishingLevelStandard, FinishingLevelLuxury}
}

type RenderStatus string

const (
	RenderStatusRendered RenderStatus = "rendered"
	RenderStatusFailed   RenderStatus = "failed"
)
