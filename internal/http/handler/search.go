package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"guild-dashboard/pkg/validator"
)

type SearchHandler struct {
	searcher MemberSearcher
}

func NewSearchHandler(searcher MemberSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Members searches the cached guild members. It is public and read-only.
func (h *SearchHandler) Members(c echo.Context) error {
	if h.searcher == nil {
		return respondError(c, http.StatusServiceUnavailable, msgSearchUnavailable)
	}

	q := strings.TrimSpace(c.QueryParam(queryQ))
	if err := validator.SearchQuery(q); err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, h.searcher.SearchMembers(c.Request().Context(), q, searchResultLimit))
}
