package store

import (
	"time"

	"recordbook/pkg/domain"
)

// RecordModel is the relational form of a record. Content columns are nullable.
type RecordModel struct {
	ID        string    `gorm:"primaryKey;size:24"`
	Name      *string   `gorm:"column:u_name"`
	Age       *string   `gorm:"column:u_age"`
	City      *string   `gorm:"column:u_city;index"`
	Hobby     *string   `gorm:"column:u_hobby"`
	CreatedAt time.Time `gorm:"not null;index"`
}

func recordFromModel(m RecordModel) domain.Record {
	return domain.Record{
		ID: m.ID,
		Fields: domain.Fields{
			Name:  m.Name,
			Age:   m.Age,
			City:  m.City,
			Hobby: m.Hobby,
		},
	}
}

func modelFields(m RecordModel) domain.Fields {
	return recordFromModel(m).Fields
}

// fieldColumns lists every content column so nil values are written as NULL.
func fieldColumns(f domain.Fields) map[string]any {
	return map[string]any{
		fieldName:  f.Name,
		fieldAge:   f.Age,
		fieldCity:  f.City,
		fieldHobby: f.Hobby,
	}
}
