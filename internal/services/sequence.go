package services

import (
	"fmt"
	"time"

	"github.com/civicdocs/backend/internal/models"
	"gorm.io/gorm"
)

// SequenceService allocates case numbers from a per-year counter row.
// The upsert increments atomically inside the transaction, so concurrent
// creations never observe the same value.
type SequenceService struct {
	DB *gorm.DB
}

func NewSequenceService(db *gorm.DB) *SequenceService {
	return &SequenceService{DB: db}
}

// NextCaseNumber returns the next case number for the current year,
// formatted CF-<year>-<zero-padded sequence>.
func (s *SequenceService) NextCaseNumber() (string, error) {
	return s.nextCaseNumberForYear(time.Now().UTC().Year())
}

func (s *SequenceService) nextCaseNumberForYear(year int) (string, error) {
	var counter int64

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Valid on both sqlite and postgres.
		if err := tx.Exec(
			"INSERT INTO case_sequences (year, counter) VALUES (?, 1) "+
				"ON CONFLICT (year) DO UPDATE SET counter = case_sequences.counter + 1",
			year,
		).Error; err != nil {
			return err
		}

		var seq models.CaseSequence
		if err := tx.First(&seq, "year = ?", year).Error; err != nil {
			return err
		}
		counter = seq.Counter
		return nil
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("CF-%d-%03d", year, counter), nil
}
