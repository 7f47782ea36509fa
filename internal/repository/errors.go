package repository

import "errors"

var (
	// ErrSlugTaken signals a publication slug collision
	ErrSlugTaken = errors.New("slug already taken")
	// ErrLinkExists signals a duplicate (owner, target) link pair
	ErrLinkExists = errors.New("link already exists")
	// ErrUsernameTaken signals a duplicate username
	ErrUsernameTaken = errors.New("username already taken")
)
