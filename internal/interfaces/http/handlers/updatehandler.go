package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/domain/bedcount"
	"github.com/icubam/icubam/internal/domain/icu"
	"github.com/icubam/icubam/internal/domain/user"
	pagetmpl "github.com/icubam/icubam/internal/infrastructure/template"
	"github.com/icubam/icubam/internal/shared/biztime"
	"github.com/icubam/icubam/internal/shared/config"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// UpdateHandler serves the bed count form reached from update links.
type UpdateHandler struct {
	auth      updateAuthenticator
	bedCounts latestBedCountReader
	writer    bedCountSubmitter
	pages     pageRenderer
	text      tagStripper
	cookie    config.CookieConfig
	staleDays int
	logger    logger.Interface
}

func NewUpdateHandler(
	auth updateAuthenticator,
	bedCounts latestBedCountReader,
	writer bedCountSubmitter,
	pages pageRenderer,
	text tagStripper,
	cookie config.CookieConfig,
	staleDays int,
	logger logger.Interface,
) *UpdateHandler {
	return &UpdateHandler{
		auth:      auth,
		bedCounts: bedCounts,
		writer:    writer,
		pages:     pages,
		text:      text,
		cookie:    cookie,
		staleDays: staleDays,
		logger:    logger,
	}
}

// bedCountForm is the body of POST /update. Missing numbers count as 0.
type bedCountForm struct {
	NCovidOcc        int    `form:"n_covid_occ" validate:"min=0"`
	NCovidFree       int    `form:"n_covid_free" validate:"min=0"`
	NNCovidOcc       int    `form:"n_ncovid_occ" validate:"min=0"`
	NNCovidFree      int    `form:"n_ncovid_free" validate:"min=0"`
	NCovidDeaths     int    `form:"n_covid_deaths" validate:"min=0"`
	NCovidHealed     int    `form:"n_covid_healed" validate:"min=0"`
	NCovidRefused    int    `form:"n_covid_refused" validate:"min=0"`
	NCovidTransfered int    `form:"n_covid_transfered" validate:"min=0"`
	Message          string `form:"message" validate:"max=2000"`
}

type formField struct {
	Name  string
	Label string
	Value int
}

type updatePage struct {
	ICUName    string
	UserName   string
	Fields     []formField
	LastUpdate *time.Time
	Ago        string
	Stale      bool
	Disclaimer template.HTML
}

// Form handles GET /update?id={token}.
func (h *UpdateHandler) Form(c *gin.Context) {
	ctx := c.Request.Context()
	bearer := c.Query(constants.QueryParamUpdateID)

	u, i, ok := h.authenticate(c, bearer)
	if !ok {
		return
	}

	counts, err := h.bedCounts.LatestBedCounts(ctx, []int64{i.ID}, nil)
	if err != nil {
		h.logger.Errorw("failed to read latest bed count", "icu_id", i.ID, "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	var latest *bedcount.BedCount
	if len(counts) > 0 {
		latest = counts[0]
	}

	page := h.page(u, i, latest)
	var buf bytes.Buffer
	if err := h.pages.Render(&buf, pagetmpl.PageUpdate, page); err != nil {
		h.logger.Errorw("failed to render update form", "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	utils.SetTokenCookie(c, h.cookie, bearer)
	c.Data(http.StatusOK, constants.ContentTypeHTML, buf.Bytes())
}

// Submit handles POST /update. The write is queued and the client is sent
// home before it lands.
func (h *UpdateHandler) Submit(c *gin.Context) {
	_, i, ok := h.authenticate(c, utils.GetTokenFromCookie(c))
	if !ok {
		return
	}

	var form bedCountForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warnw("invalid bed count form", "icu_id", i.ID, "error", err)
		c.String(http.StatusBadRequest, "Invalid form")
		return
	}
	if err := utils.ValidateStruct(&form); err != nil {
		h.logger.Warnw("invalid bed count values", "icu_id", i.ID, "error", err)
		c.String(http.StatusBadRequest, "Invalid form")
		return
	}

	h.writer.Submit(&bedcount.BedCount{
		ICUID:            i.ID,
		ICUName:          i.Name,
		NCovidOcc:        form.NCovidOcc,
		NCovidFree:       form.NCovidFree,
		NNCovidOcc:       form.NNCovidOcc,
		NNCovidFree:      form.NNCovidFree,
		NCovidDeaths:     form.NCovidDeaths,
		NCovidHealed:     form.NCovidHealed,
		NCovidRefused:    form.NCovidRefused,
		NCovidTransfered: form.NCovidTransfered,
		Message:          h.text.StripTags(form.Message),
		CreatedAt:        h.bedCounts.Now(),
	})
	h.logger.Infow("bed count submitted", "icu_id", i.ID)

	c.Redirect(http.StatusSeeOther, "/")
}

// authenticate answers 404 for every credential failure so that the
// existence of a token is never disclosed.
func (h *UpdateHandler) authenticate(c *gin.Context, bearer string) (*user.User, *icu.ICU, bool) {
	u, i, err := h.auth.Authenticate(c.Request.Context(), bearer)
	if err == nil {
		return u, i, true
	}
	if isCredentialError(err) {
		h.logger.Debugw("update token refused", "token", logger.Mask(bearer), "error", err)
	} else {
		h.logger.Errorw("failed to authenticate update token", "error", err)
	}
	if utils.GetTokenFromCookie(c) != "" {
		utils.ClearTokenCookie(c, h.cookie)
	}
	c.String(http.StatusNotFound, "404: Not Found")
	return nil, nil, false
}

func (h *UpdateHandler) page(u *user.User, i *icu.ICU, latest *bedcount.BedCount) updatePage {
	if latest == nil {
		latest = &bedcount.BedCount{}
	}
	page := updatePage{
		ICUName:  i.Name,
		UserName: u.Name,
		Fields: []formField{
			{"n_covid_occ", "COVID+ occupied beds", latest.NCovidOcc},
			{"n_covid_free", "COVID+ free beds", latest.NCovidFree},
			{"n_ncovid_occ", "Non-COVID occupied beds", latest.NNCovidOcc},
			{"n_ncovid_free", "Non-COVID free beds", latest.NNCovidFree},
			{"n_covid_deaths", "COVID+ deaths (cumulative)", latest.NCovidDeaths},
			{"n_covid_healed", "COVID+ discharged (cumulative)", latest.NCovidHealed},
			{"n_covid_refused", "COVID+ refused (cumulative)", latest.NCovidRefused},
			{"n_covid_transfered", "COVID+ transferred (cumulative)", latest.NCovidTransfered},
		},
		Disclaimer: h.pages.Disclaimer(),
	}
	if latest.ID == 0 {
		page.Stale = true
		page.Ago = "never"
		return page
	}

	now := h.bedCounts.Now()
	ts := latest.CreatedAt
	page.LastUpdate = &ts
	page.Stale = latest.IsStale(now, h.staleDays)
	n, unit := biztime.TimeAgo(&ts, now)
	switch {
	case n <= 0:
		page.Ago = "just now"
	case n == 1:
		page.Ago = fmt.Sprintf("1 %s ago", unit)
	default:
		page.Ago = fmt.Sprintf("%d %ss ago", n, unit)
	}
	return page
}

func isCredentialError(err error) bool {
	for _, target := range []error{
		access.ErrUnknown,
		access.ErrMalformed,
		access.ErrInactive,
		access.ErrRevokedConsent,
		access.ErrNotMember,
		access.ErrExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
