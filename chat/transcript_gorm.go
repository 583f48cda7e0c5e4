package chat

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TranscriptLine is one appended chunk of channel history.
type TranscriptLine struct {
	ID          uint   `gorm:"primaryKey"`
	ChannelName string `gorm:"index;size:190"`
	Body        string
}

// GormStore persists transcripts in a SQLite database. SQLite serializes
// writers on its own, which covers the per-channel append contract.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens (or creates) the database at dsn and migrates the
// transcript table.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}
	if err := db.AutoMigrate(&TranscriptLine{}); err != nil {
		return nil, fmt.Errorf("failed to migrate transcript table: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Append inserts one history line for the channel.
func (s *GormStore) Append(channelName, text string) error {
	line := TranscriptLine{ChannelName: channelName, Body: text}
	if err := s.db.Create(&line).Error; err != nil {
		return fmt.Errorf("failed to append transcript for %s: %w", channelName, err)
	}
	return nil
}

// ReadAll concatenates the channel's history in insertion order. A channel
// with no history reads as "".
func (s *GormStore) ReadAll(channelName string) (string, error) {
	var lines []TranscriptLine
	err := s.db.Where("channel_name = ?", channelName).Order("id").Find(&lines).Error
	if err != nil {
		return "", fmt.Errorf("failed to read transcript for %s: %w", channelName, err)
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line.Body)
	}
	return sb.String(), nil
}
