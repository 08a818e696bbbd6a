package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/filmmaker-og/filmmaker-ogbot/internal/model"
	"github.com/filmmaker-og/filmmaker-ogbot/internal/vault"
)

const fullPage = vault.PageSize

// parseView maps an inbound view name to a post status.
func parseView(view string) (model.Status, error) {
	switch view {
	case "approved":
		return model.StatusApproved, nil
	case "archived":
		return model.StatusArchived, nil
	case "pending":
		return model.StatusPending, nil
	default:
		return "", fmt.Errorf("unknown view %q, use approved, archived or pending", view)
	}
}

// parsePage extracts a 1-based page number, defaulting to 1.
func parsePage(args string) int {
	s := strings.TrimSpace(args)
	if s == "" {
		return 1
	}
	page, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func pageCallback(status model.Status, page int) string {
	return fmt.Sprintf("vault:%s:%d", status, page)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
