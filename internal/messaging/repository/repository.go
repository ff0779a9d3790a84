package repository

import (
	"errors"

	"secure_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// 定義錯誤信息
var (
	ErrNotFound        = errors.New("record not found")
	ErrLastParticipant = errors.New("cannot remove last participant")
	ErrNotParticipant  = errors.New("target is not a participant")
	ErrInvalidID       = errors.New("malformed id")
)

// AutoMigrate create or update the messaging tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Practitioner{},
		&domain.Thread{},
		&domain.ThreadParticipant{},
		&domain.Message{},
		&domain.MessageRead{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// validID every id column is a postgres uuid; a malformed id can never match a row
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) bool {
	return lo.EveryBy(ids, validID)
}

func onlyValid(ids []string) []string {
	return lo.Filter(ids, func(id string, _ int) bool { return validID(id) })
}
