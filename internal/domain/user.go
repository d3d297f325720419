package domain

type UserProfile struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// User is the remote user resource: profile fields plus the embedded cart.
type User struct {
	UserProfile
	Cart Cart `json:"cart"`
}
