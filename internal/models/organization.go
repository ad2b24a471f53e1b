package models

// Department owns proposals and activities.
type Department struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Abbreviation string `db:"abbreviation" json:"abbreviation"`
}

// Community is a partner community served by an activity.
type Community struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// BannerProgram groups activities under an institutional program.
type BannerProgram struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}
