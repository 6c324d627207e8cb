package ticketmap

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Record struct {
	TicketID      string    `gorm:"type:varchar(64);primaryKey"`
	RequesterID   string    `gorm:"type:varchar(64);index;not null"`
	OriginChannel string    `gorm:"type:varchar(64);not null"`
	TicketType    string    `gorm:"type:varchar(32);not null"`
	IsSensitive   bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"index"`
}

func (Record) TableName() string { return "ticket_mappings" }

// DBMirror stores the mappings in a table, replacing every row on Save.
type DBMirror struct {
	db *gorm.DB
}

func NewDBMirror(db *gorm.DB) *DBMirror {
	return &DBMirror{db: db}
}

func (m *DBMirror) AutoMigrate() error {
	return m.db.AutoMigrate(&Record{})
}

func (m *DBMirror) Save(ctx context.Context, all map[string]Mapping) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Record{}).Error; err != nil {
			return err
		}
		if len(all) == 0 {
			return nil
		}
		rows := make([]Record, 0, len(all))
		for id, mp := range all {
			rows = append(rows, Record{
				TicketID:      id,
				RequesterID:   mp.RequesterID,
				OriginChannel: mp.OriginChannel,
				TicketType:    mp.TicketType,
				IsSensitive:   mp.IsSensitive,
				CreatedAt:     mp.CreatedAt,
			})
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

func (m *DBMirror) Load(ctx context.Context) (map[string]Mapping, error) {
	var rows []Record
	if err := m.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]Mapping, len(rows))
	for _, r := range rows {
		out[r.TicketID] = Mapping{
			TicketID:      r.TicketID,
			RequesterID:   r.RequesterID,
			OriginChannel: r.OriginChannel,
			TicketType:    r.TicketType,
			IsSensitive:   r.IsSensitive,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out, nil
}
