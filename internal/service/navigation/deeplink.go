package navigation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/romanzh1/course-player/internal/models"
)

// DeepLink is the position requested by the hosting URL. Chapter is only read
// when Module is present and Page only when Chapter is present.
type DeepLink struct {
	Mode    models.Mode
	Module  *int64
	Chapter *int
	Page    *int
}

func ParseDeepLink(q url.Values) DeepLink {
	link := DeepLink{Mode: models.ModeView}
	if strings.EqualFold(q.Get("mode"), string(models.ModeEdit)) {
		link.Mode = models.ModeEdit
	}

	module, err := strconv.ParseInt(q.Get("module"), 10, 64)
	if err != nil {
		return link
	}
	link.Module = &module

	chapter, err := strconv.Atoi(q.Get("chapter"))
	if err != nil {
		return link
	}
	link.Chapter = &chapter

	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		return link
	}
	link.Page = &page

	return link
}

// ContentURL points the content surface at a module position. Edit mode is
// only emitted for users allowed to edit.
func ContentURL(base string, moduleID int64, idx models.ProgressionIndex, mode models.Mode, canEdit bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse content base url (url: %s): %w", base, err)
	}

	if mode != models.ModeEdit || !canEdit {
		mode = models.ModeView
	}

	params := fmt.Sprintf("module=%d&chapter=%d&page=%d&mode=%s", moduleID, idx.Chapter, idx.Page, mode)
	if u.RawQuery != "" {
		u.RawQuery += "&" + params
	} else {
		u.RawQuery = params
	}

	return u.String(), nil
}
