package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sakchai-dev/school-grading-api/internal/models"
	appErrors "github.com/sakchai-dev/school-grading-api/pkg/errors"
)

type structureRepo interface {
	ListUnits(ctx context.Context, courseID string) ([]models.LearningUnit, error)
	ListItems(ctx context.Context, courseID string) (map[string][]models.GradedItem, error)
	FindItem(ctx context.Context, itemID string) (*models.GradedItem, string, error)
}

// StructureService resolves a course's grading structure: ordered learning
// units, their graded items, and the course-level maxima.
type StructureService struct {
	structures structureRepo
	logger     *zap.Logger
}

// NewStructureService constructs StructureService.
func NewStructureService(structures structureRepo, logger *zap.Logger) *StructureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructureService{structures: structures, logger: logger}
}

// Resolve returns the course structure. A course without a lesson plan
// resolves to an empty structure with zero totals, never an error.
func (s *StructureService) Resolve(ctx context.Context, courseID string) (*models.CourseStructure, error) {
	units, err := s.structures.ListUnits(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load learning units")
	}
	structure := &models.CourseStructure{CourseID: courseID}
	if len(units) == 0 {
		return structure, nil
	}

	itemsByUnit, err := s.structures.ListItems(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load graded items")
	}

	structure.Units = make([]models.UnitStructure, 0, len(units))
	for _, unit := range units {
		items := itemsByUnit[unit.ID]
		for _, item := range items {
			structure.CollectedMax += item.MaxScore
		}
		// exam maxima come from unit allocations, not item max scores
		structure.MidtermMax += unit.MidtermScore
		structure.FinalMax += unit.FinalScore
		structure.Units = append(structure.Units, models.UnitStructure{Unit: unit, Items: items})
	}
	return structure, nil
}

// FindItem resolves one graded item and its owning course.
func (s *StructureService) FindItem(ctx context.Context, itemID string) (*models.GradedItem, string, error) {
	item, courseID, err := s.structures.FindItem(ctx, itemID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "graded item not found")
	}
	return item, courseID, nil
}
