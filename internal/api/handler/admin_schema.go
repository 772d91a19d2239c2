package handler

import "time"

type replaceRolesResponse struct {
	Message  string   `json:"message"`
	Username string   `json:"username"`
	Previous []string `json:"previous"`
	Roles    []string `json:"roles"`
}

type listUsersResponse struct {
	Items      []userResponse `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
}

type roleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listRolesResponse struct {
	Items []roleResponse `json:"items"`
}

type roleChangeResponse struct {
	Previous  []string  `json:"previous"`
	Current   []string  `json:"current"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

type roleHistoryResponse struct {
	Username string               `json:"username"`
	Changes  []roleChangeResponse `json:"changes"`
}
