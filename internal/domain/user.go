package domain

// User anchors every timeline record. Users are immutable once registered.
type User struct {
	ID   int64
	Name string
}
