package handler

import (
	"github.com/tafelzaak/identity/internal/core/domain"
	"github.com/tafelzaak/identity/internal/core/ports"
)

// --- Request → Service input ---

func (p profileRequest) toProfile() domain.Profile {
	return domain.Profile{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Street:      p.Street,
		HouseNumber: p.HouseNumber,
		PostalCode:  p.PostalCode,
		City:        p.City,
		CountryID:   p.CountryID,
	}
}

func (p profileRequest) toPatch(email string) domain.ProfilePatch {
	return domain.ProfilePatch{
		Email:       email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Street:      p.Street,
		HouseNumber: p.HouseNumber,
		PostalCode:  p.PostalCode,
		City:        p.City,
		CountryID:   p.CountryID,
	}
}

func toCreateInput(req createUserRequest) (ports.CreateUserInput, error) {
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return ports.CreateUserInput{}, err
	}
	return ports.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Profile:  req.toProfile(),
	}, nil
}

func toEditInput(req editUserRequest) (ports.EditUserInput, error) {
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return ports.EditUserInput{}, err
	}
	return ports.EditUserInput{
		Patch: req.toPatch(req.Email),
		Role:  role,
	}, nil
}

// --- Domain → Response ---

func toUserResponse(u *domain.User) userResponse {
	role := u.PrimaryRole()
	resp := userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
		Profile:        u.Profile,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if role != "" {
		resp.Role = string(role)
		resp.RoleName = role.DisplayName()
	}
	return resp
}

func toUserResponses(users []*domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toRoleGroupResponses(groups []ports.RoleGroup) []roleGroupResponse {
	out := make([]roleGroupResponse, 0, len(groups))
	for _, g := range groups {
		name := ""
		if g.Role != "" {
			name = g.Role.DisplayName()
		}
		out = append(out, roleGroupResponse{
			Role:     string(g.Role),
			RoleName: name,
			Users:    toUserResponses(g.Users),
		})
	}
	return out
}

func toAuditResponses(entries []domain.AuditLogEntry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse(e))
	}
	return out
}
