package handler

import (
	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

func toUserResponse(u *domain.User) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
		CreatedAt: u.CreatedAt,
	}
}

func toListUsersResponse(r *ports.ListUsersResult) listUsersResponse {
	items := make([]userResponse, 0, len(r.Items))
	for _, u := range r.Items {
		items = append(items, toUserResponse(u))
	}
	return listUsersResponse{
		Items:      items,
		Total:      r.Total,
		Page:       r.Page,
		Limit:      r.Limit,
		TotalPages: r.TotalPages,
	}
}

func toReplaceRolesResponse(c *domain.RoleChange) replaceRolesResponse {
	previous := c.Previous
	if previous == nil {
		previous = []string{}
	}
	return replaceRolesResponse{
		Message:  "Roles updated successfully",
		Username: c.Username,
		Previous: previous,
		Roles:    c.Current,
	}
}

func toRoleHistoryResponse(username string, changes []*domain.RoleChange) roleHistoryResponse {
	out := make([]roleChangeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, roleChangeResponse{
			Previous:  c.Previous,
			Current:   c.Current,
			ChangedBy: c.ChangedBy,
			ChangedAt: c.ChangedAt,
		})
	}
	return roleHistoryResponse{Username: username, Changes: out}
}

func toListRolesResponse(roles []*domain.Role) listRolesResponse {
	items := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		items = append(items, roleResponse{ID: r.ID, Name: r.Name})
	}
	return listRolesResponse{Items: items}
}
