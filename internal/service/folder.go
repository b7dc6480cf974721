package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vocaloop/srs-core/internal/domain/entities"
	"github.com/vocaloop/srs-core/internal/infra/postgres/repository"
	"github.com/vocaloop/srs-core/internal/srs"
)

// FolderService manages folders, enrollment of cards into them, and the
// study queue they produce.
type FolderService struct {
	tx     Transactor
	bind   BindFunc
	stores Stores
	vocab  VocabProvider
	clock  srs.Clock
	loc    *time.Location
	logger *zap.Logger
}

func NewFolderService(
	tx Transactor,
	bind BindFunc,
	stores Stores,
	vocab VocabProvider,
	clock srs.Clock,
	loc *time.Location,
	logger *zap.Logger,
) *FolderService {
	return &FolderService{
		tx:     tx,
		bind:   bind,
		stores: stores,
		vocab:  vocab,
		clock:  clock,
		loc:    loc,
		logger: logger,
	}
}

// CreateFolder creates a custom folder. A child folder inherits its parent's
// learning curve; a root folder gets the forgetting curve default.
func (s *FolderService) CreateFolder(ctx context.Context, userID int64, name string, date *time.Time, parentID *int64, alarmOn bool) (*entities.Folder, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is empty", ErrInvalidArgument)
	}

	now := s.clock.Now()
	curve := entities.CurveForgettingCurve

	if parentID != nil {
		parent, err := s.getOwnedFolder(ctx, s.stores.Folders, userID, *parentID)
		if err != nil {
			return nil, err
		}
		curve = parent.LearningCurveType
	}

	folderDate := srs.StartOfDay(now, s.loc)
	if date != nil {
		folderDate = srs.StartOfDay(*date, s.loc)
	}

	folder := &entities.Folder{
		UserID:            userID,
		ParentID:          parentID,
		Name:              name,
		Kind:              entities.FolderKindCustom,
		Date:              folderDate,
		AlarmActive:       alarmOn,
		LearningCurveType: curve,
		CreatedAt:         now,
	}

	id, err := s.stores.Folders.Create(ctx, folder)
	if err != nil {
		return nil, err
	}
	folder.ID = id

	s.logger.Info("folder created",
		zap.Int64("user_id", userID),
		zap.Int64("folder_id", id),
		zap.String("curve", string(curve)),
	)
	return folder, nil
}

// AddCardsToFolder enrolls the given vocabulary items into a folder,
// creating cards as needed. A duplicate membership rejects the whole batch.
func (s *FolderService) AddCardsToFolder(ctx context.Context, userID, folderID int64, itemIDs []int64) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	added := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)

		folder, err := s.getOwnedFolder(ctx, st.Folders, userID, folderID)
		if err != nil {
			return err
		}

		cardIDs, err := st.Cards.EnsureCards(ctx, userID, itemIDs)
		if err != nil {
			return err
		}

		for _, cardID := range cardIDs {
			if err := st.Folders.AddItem(ctx, folder.ID, cardID); err != nil {
				if errors.Is(err, repository.ErrFolderItemConflict) {
					return fmt.Errorf("%w: card %d already in folder %d", ErrConflict, cardID, folderID)
				}
				return err
			}
			added++
		}

		// The folder's curve governs these cards from now on.
		return st.Cards.AssignFolder(ctx, folder.ID, cardIDs)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("cards added to folder",
		zap.Int64("user_id", userID),
		zap.Int64("folder_id", folderID),
		zap.Int("added", added),
	)
	return added, nil
}

// CreateAutoFolders splits the given items into consecutive dated child
// folders under a new parent, perDay items each, and enrolls the cards, all
// in one transaction. Children carry the auto kind and each day's cards are
// governed by their own child folder.
func (s *FolderService) CreateAutoFolders(ctx context.Context, userID int64, name string, itemIDs []int64, perDay int, startDate *time.Time, alarmOn bool) (*entities.Folder, []*entities.Folder, error) {
	if name == "" {
		return nil, nil, fmt.Errorf("%w: folder name is empty", ErrInvalidArgument)
	}
	if perDay < 1 {
		return nil, nil, fmt.Errorf("%w: items per day must be positive", ErrInvalidArgument)
	}
	if len(itemIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: no items to split", ErrInvalidArgument)
	}

	now := s.clock.Now()
	start := srs.StartOfDay(now, s.loc)
	if startDate != nil {
		start = srs.StartOfDay(*startDate, s.loc)
	}

	var (
		parent   *entities.Folder
		children []*entities.Folder
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st := s.bind(tx)

		parent = &entities.Folder{
			UserID:            userID,
			Name:              name,
			Kind:              entities.FolderKindCustom,
			Date:              start,
			LearningCurveType: entities.CurveForgettingCurve,
			AutoCreated:       true,
			CreatedAt:         now,
		}
		id, err := st.Folders.Create(ctx, parent)
		if err != nil {
			return err
		}
		parent.ID = id

		for day := 0; day*perDay < len(itemIDs); day++ {
			lo := day * perDay
			hi := lo + perDay
			if hi > len(itemIDs) {
				hi = len(itemIDs)
			}

			child := &entities.Folder{
				UserID:            userID,
				ParentID:          &parent.ID,
				Name:              fmt.Sprintf("%s DAY %d", name, day+1),
				Kind:              entities.FolderKindAuto,
				Date:              start.AddDate(0, 0, day),
				AlarmActive:       alarmOn,
				LearningCurveType: parent.LearningCurveType,
				AutoCreated:       true,
				CreatedAt:         now,
			}
			childID, err := st.Folders.Create(ctx, child)
			if err != nil {
				return err
			}
			child.ID = childID

			cardIDs, err := st.Cards.EnsureCards(ctx, userID, itemIDs[lo:hi])
			if err != nil {
				return err
			}
			for _, cardID := range cardIDs {
				if err := st.Folders.AddItem(ctx, child.ID, cardID); err != nil {
					if errors.Is(err, repository.ErrFolderItemConflict) {
						return fmt.Errorf("%w: card %d already in folder %d", ErrConflict, cardID, child.ID)
					}
					return err
				}
			}
			if err := st.Cards.AssignFolder(ctx, child.ID, cardIDs); err != nil {
				return err
			}
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("auto folders created",
		zap.Int64("user_id", userID),
		zap.Int64("parent_id", parent.ID),
		zap.Int("days", len(children)),
		zap.Int("items", len(itemIDs)),
	)
	return parent, children, nil
}

// GetQueue returns the folder's unlearned items with their vocabulary detail,
// in stable study order.
func (s *FolderService) GetQueue(ctx context.Context, userID, folderID int64) ([]*entities.QueueItem, error) {
	if _, err := s.getOwnedFolder(ctx, s.stores.Folders, userID, folderID); err != nil {
		return nil, err
	}

	items, err := s.stores.Folders.ListUnlearnedItems(ctx, folderID)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if v, err := s.vocab.GetByID(it.ItemID); err == nil {
			it.Vocab = v
		}
	}
	return items, nil
}

// FolderSummary is one folder with its study progress, as listed to callers.
type FolderSummary struct {
	Folder *entities.Folder
	Counts entities.FolderCounts
}

// ListFolders returns the user's folders dated up to today, newest first,
// each with its learned/remaining counts.
func (s *FolderService) ListFolders(ctx context.Context, userID int64) ([]*FolderSummary, error) {
	today := srs.StartOfDay(s.clock.Now(), s.loc)

	folders, err := s.stores.Folders.ListForDate(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	out := make([]*FolderSummary, 0, len(folders))
	for _, f := range folders {
		counts, err := s.stores.Folders.Counts(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &FolderSummary{Folder: f, Counts: counts})
	}
	return out, nil
}

// GetCounts returns the folder's study progress.
func (s *FolderService) GetCounts(ctx context.Context, userID, folderID int64) (entities.FolderCounts, error) {
	if _, err := s.getOwnedFolder(ctx, s.stores.Folders, userID, folderID); err != nil {
		return entities.FolderCounts{}, err
	}
	return s.stores.Folders.Counts(ctx, folderID)
}

// RestartFolder marks every item of the folder unlearned again.
func (s *FolderService) RestartFolder(ctx context.Context, userID, folderID int64) error {
	if _, err := s.getOwnedFolder(ctx, s.stores.Folders, userID, folderID); err != nil {
		return err
	}
	return s.stores.Folders.ResetItems(ctx, folderID)
}

// Unenroll removes a user's card entirely. Folder memberships cascade away
// with it.
func (s *FolderService) Unenroll(ctx context.Context, userID, cardID int64) error {
	err := s.stores.Cards.Delete(ctx, userID, cardID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return fmt.Errorf("%w: card %d", ErrNotFound, cardID)
		}
		return err
	}
	return nil
}

func (s *FolderService) getOwnedFolder(ctx context.Context, folders FolderStore, userID, folderID int64) (*entities.Folder, error) {
	folder, err := folders.Get(ctx, folderID)
	if err != nil {
		if errors.Is(err, repository.ErrFolderNotFound) {
			return nil, fmt.Errorf("%w: folder %d", ErrNotFound, folderID)
		}
		return nil, err
	}
	if folder.UserID != userID {
		return nil, fmt.Errorf("%w: folder %d", ErrForbidden, folderID)
	}
	return folder, nil
}
