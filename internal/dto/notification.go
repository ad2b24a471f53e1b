package dto

// NotificationQuery mirrors inbox listing filters.
type NotificationQuery struct {
	Status   []string `form:"status"`
	Type     string   `form:"type"`
	Page     int      `form:"page"`
	PageSize int      `form:"pageSize"`
}

// UnreadCountResponse is returned by the unread badge endpoint.
type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
