package models

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/houseplan_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// PlanStore persists complete plans. Create and Delete are all-or-nothing.
type PlanStore interface {
	Create(ctx context.Context, plan *HousePlan) error
	Get(ctx context.Context, id string) (*HousePlan, error)
	ListByOwner(ctx context.Context, ownerId string) ([]*HousePlan, error)
	Delete(ctx context.Context, id string) error
}

type GormPlanStore struct {
	db *gorm.DB
}

func NewGormPlanStore(db *gorm.DB) *GormPlanStore {
	return &GormPlanStore{db: db}
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func orderByStage(db *gorm.DB) *gorm.DB {
	return db.Order("stage_order")
}

func (s *GormPlanStore) withChildren(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Floors", orderByPosition).
		Preload("Floors.Rooms", orderByPosition).
		Preload("ConstructionStages", orderByStage).
		Preload("ConstructionStages.LineItems", orderByPosition)
}

// Create inserts the plan and every child row in one transaction.
func (s *GormPlanStore) Create(ctx context.Context, plan *HousePlan) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(plan).Error
	})
	if err != nil {
		return classifyDbError("create", err)
	}
	return nil
}

func (s *GormPlanStore) Get(ctx context.Context, id string) (*HousePlan, error) {
	var plan HousePlan
	if err := s.withChildren(ctx).Where("id = ?", id).Take(&plan).Error; err != nil {
		return nil, classifyDbError("get", err)
	}
	return &plan, nil
}

// ListByOwner returns the owner's plans, newest first.
func (s *GormPlanStore) ListByOwner(ctx context.Context, ownerId string) ([]*HousePlan, error) {
	plans := make([]*HousePlan, 0)
	err := s.withChildren(ctx).
		Where("owner_id = ?", ownerId).
		Order("created_at DESC, id DESC").
		Find(&plans).Error
	if err != nil {
		return nil, classifyDbError("list", err)
	}
	return plans, nil
}

// Delete removes the plan and its children. Children are deleted explicitly
// so it does not depend on the FK cascade having been migrated.
func (s *GormPlanStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan HousePlan
		if err := tx.Select("id").Where("id = ?", id).Take(&plan).Error; err != nil {
			return err
		}

		floorIds := tx.Model(&Floor{}).Select("id").Where("house_plan_id = ?", id)
		if err := tx.Where("floor_id IN (?)", floorIds).Delete(&Room{}).Error; err != nil {
			return err
		}
		stageIds := tx.Model(&ConstructionStage{}).Select("id").Where("house_plan_id = ?", id)
		if err := tx.Where("stage_id IN (?)", stageIds).Delete(&MaterialLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("house_plan_id = ?", id).Delete(&Floor{}).Error; err != nil {
			return err
		}
		if err := tx.Where("house_plan_id = ?", id).Delete(&ConstructionStage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&plan).Error
	})
	if err != nil {
		return classifyDbError("delete", err)
	}
	return nil
}

// classifyDbError maps gorm and MySQL errors onto the service taxonomy.
func classifyDbError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062:
			return fmt.Errorf("%w: %s: duplicate key: %v", utils.ErrPersistenceFailure, op, err)
		case 1205, 1213:
			return fmt.Errorf("%w: %s: lock conflict: %v", utils.ErrPersistenceFailure, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", utils.ErrPersistenceFailure, op, err)
}
