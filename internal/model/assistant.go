package model

type Assistant struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
