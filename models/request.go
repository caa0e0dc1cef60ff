package models

import "gorm.io/gorm"

// Request is a proposed trade: the requester gives the Give books and takes
// the Take books, which all belong to the responder.
type Request struct {
	gorm.Model
	PublicID string `gorm:"size:100;uniqueIndex"`

	RequesterID uint `gorm:"not null;index"`
	Requester   User `gorm:"foreignKey:RequesterID" json:"-"`
	ResponderID uint `gorm:"not null;index"`
	Responder   User `gorm:"foreignKey:ResponderID" json:"-"`

	Give []Book `gorm:"many2many:request_gives"`
	Take []Book `gorm:"many2many:request_takes"`

	Traded bool `gorm:"not null;default:false"`
}

// BookIDs returns the ids of every book in both lists
func (r Request) BookIDs() []uint {
	ids := make([]uint, 0, len(r.Give)+len(r.Take))
	for _, b := range r.Give {
		ids = append(ids, b.ID)
	}
	for _, b := range r.Take {
		ids = append(ids, b.ID)
	}
	return ids
}
