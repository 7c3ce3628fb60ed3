package model

type DashboardForm struct {
	Name        string            `json:"name,omitempty" binding:"required"`
	Description string            `json:"description,omitempty"`
	Enabled     bool              `json:"enabled,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
}
