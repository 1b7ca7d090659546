package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.NewValidationError("original_url", "is required", apperror.ErrInvalidURL), http.StatusBadRequest, CodeInvalidURL},
		{apperror.NewValidationError("custom_slug", "too short", apperror.ErrInvalidSlug), http.StatusBadRequest, CodeInvalidSlug},
		{apperror.NewValidationError("tz", "unknown", apperror.ErrInvalidInput), http.StatusBadRequest, CodeInvalidInput},
		{fmt.Errorf("create link: %w", apperror.ErrSlugTaken), http.StatusConflict, CodeSlugTaken},
		{apperror.ErrAllocationExhausted, http.StatusServiceUnavailable, CodeAllocationExhausted},
		{apperror.ErrLinkNotFound, http.StatusNotFound, CodeLinkNotFound},
		{apperror.ErrForbidden, http.StatusForbidden, CodeForbidden},
		{&apperror.ResolutionError{Kind: apperror.ErrLinkDisabled, Link: &model.Link{Slug: "x"}}, http.StatusGone, CodeLinkDisabled},
		{&apperror.ResolutionError{Kind: apperror.ErrLinkExpired}, http.StatusGone, CodeLinkExpired},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		status, body := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body.Code, tc.err.Error())
	}
}

func TestStatusFor_HidesInternalDetails(t *testing.T) {
	_, body := statusFor(errors.New("password=secret host=db"))
	assert.NotContains(t, body.Error, "secret")
}
