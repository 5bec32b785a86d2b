package trackclient

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/diintechteam9/cab-tracker/internal/models"
)

// Link is the content of a tracking link as handed out on trip creation:
// {base}/track?token=X&role=passenger&access=JWT.
type Link struct {
	Token  string
	Role   models.Role
	Access string
}

func ParseLink(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("invalid tracking link: %w", err)
	}
	q := u.Query()
	link := Link{
		Token:  q.Get("token"),
		Role:   models.Role(q.Get("role")),
		Access: q.Get("access"),
	}
	if link.Token == "" {
		return Link{}, errors.New("tracking link has no token")
	}
	if link.Role != "" && !link.Role.IsValid() {
		return Link{}, fmt.Errorf("tracking link has unknown role %q", link.Role)
	}
	return link, nil
}
