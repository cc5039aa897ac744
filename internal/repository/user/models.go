package user

type User struct {
	Email        string `redis:"email"`
	Nickname     string `redis:"nickname"`
	PasswordHash string `redis:"password_hash"`
	CreatedAt    int64  `redis:"created_at"`
}

type SetUserParams struct {
	Email        string
	Nickname     string
	PasswordHash string
	CreatedAt    int64
}

type RevokeTokenParams struct {
	TokenID   string
	ExpiresAt int64
}
