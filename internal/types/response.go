package types

import "time"

// Envelope is the uniform response wrapper returned by every endpoint.
// List endpoints additionally carry pagination fields.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Total   *int64      `json:"total,omitempty"`
	Page    *int        `json:"page,omitempty"`
	Pages   *int        `json:"pages,omitempty"`
}

func Success(data interface{}) Envelope {
	return Envelope{Success: true, Data: data}
}

func SuccessMessage(message string) Envelope {
	return Envelope{Success: true, Message: message}
}

func Error(message string) Envelope {
	return Envelope{Success: false, Message: message}
}

func Paginated(data interface{}, count int, total int64, page, pages int) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
		Count:   &count,
		Total:   &total,
		Page:    &page,
		Pages:   &pages,
	}
}

// UserResponse is the public view of a user. The password hash never
// leaves the models package.
type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type MemberResponse struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"` // membership role, not global role
	JoinedAt time.Time `json:"joined_at"`
}
