package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/anywhere-israel/hostmatch/internal/models"
)

// LoadMatchDetails materializes the request and both parties of a match.
func LoadMatchDetails(ctx context.Context, store Store, match models.Match) (models.MatchDetails, error) {
	req, err := store.Requests().GetRequest(ctx, match.RequestID)
	if err != nil {
		return models.MatchDetails{}, errors.Wrapf(err, "load request %s", match.RequestID)
	}
	host, err := store.Accounts().GetAccount(ctx, match.HostID)
	if err != nil {
		return models.MatchDetails{}, errors.Wrapf(err, "load host %s", match.HostID)
	}
	student, err := store.Accounts().GetAccount(ctx, req.StudentID)
	if err != nil {
		return models.MatchDetails{}, errors.Wrapf(err, "load student %s", req.StudentID)
	}
	return models.MatchDetails{Match: match, Request: req, Host: host, Student: student}, nil
}
