package user

// CreateProfileRequest carries the identity fields known when an account is created.
type CreateProfileRequest struct {
	UID         string `json:"uid" validate:"required"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	Username    string `json:"username,omitempty"`
}
