package handlers

import (
	"time"

	"github.com/andrewpaige1/bookswap-api/models"
)

type BookView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Owner         string    `json:"owner"`
	NumOfRequests int       `json:"numOfRequests"`
	CreatedAt     time.Time `json:"createdAt"`
}

func bookView(b models.Book, owner string) BookView {
	if owner == "" {
		owner = b.User.Username
	}
	return BookView{
		ID:            b.PublicID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		Owner:         owner,
		NumOfRequests: b.NumOfRequests,
		CreatedAt:     b.CreatedAt,
	}
}

func bookViews(books []models.Book, owner string) []BookView {
	views := make([]BookView, len(books))
	for i, b := range books {
		views[i] = bookView(b, owner)
	}
	return views
}

type RequestView struct {
	ID        string     `json:"id"`
	Requester string     `json:"requester"`
	Responder string     `json:"responder"`
	Give      []BookView `json:"give"`
	Take      []BookView `json:"take"`
	Traded    bool       `json:"traded"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Owners are shown as they were when the request was made
func requestView(req models.Request) RequestView {
	return RequestView{
		ID:        req.PublicID,
		Requester: req.Requester.Username,
		Responder: req.Responder.Username,
		Give:      bookViews(req.Give, req.Requester.Username),
		Take:      bookViews(req.Take, req.Responder.Username),
		Traded:    req.Traded,
		CreatedAt: req.CreatedAt,
	}
}

func requestViews(reqs []models.Request) []RequestView {
	views := make([]RequestView, len(reqs))
	for i, req := range reqs {
		views[i] = requestView(req)
	}
	return views
}

type TradeView struct {
	ID        uint        `json:"id"`
	Gave      string      `json:"gave"`
	Took      string      `json:"took"`
	Request   RequestView `json:"request"`
	CreatedAt time.Time   `json:"createdAt"`
}

func tradeView(t models.Trade) TradeView {
	req := t.Request
	req.Requester = t.GaveUser
	req.Responder = t.TookUser
	return TradeView{
		ID:        t.ID,
		Gave:      t.GaveUser.Username,
		Took:      t.TookUser.Username,
		Request:   requestView(req),
		CreatedAt: t.CreatedAt,
	}
}

type ProfileView struct {
	Username string     `json:"username"`
	FullName string     `json:"fullName"`
	City     string     `json:"city"`
	State    string     `json:"state"`
	Books    []BookView `json:"books"`
}

func profileView(u models.User) ProfileView {
	return ProfileView{
		Username: u.Username,
		FullName: u.FullName,
		City:     u.City,
		State:    u.State,
		Books:    bookViews(u.Books, u.Username),
	}
}

// MeView is the signed in user's own view, address fields decrypted
type MeView struct {
	ID                  uint     `json:"id"`
	Username            string   `json:"username"`
	Email               string   `json:"email"`
	FullName            string   `json:"fullName"`
	City                string   `json:"city"`
	State               string   `json:"state"`
	Address             string   `json:"address"`
	Zip                 string   `json:"zip"`
	HasPassword         bool     `json:"hasPassword"`
	Providers           []string `json:"providers"`
	UnreadNotifications int64    `json:"unreadNotifications"`
}
