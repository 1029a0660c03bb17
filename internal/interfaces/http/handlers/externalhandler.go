package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/application/aggregation"
	"github.com/icubam/icubam/internal/application/export"
	"github.com/icubam/icubam/internal/domain/access"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// ExternalHandler serves the data API used by analysts and the public map.
type ExternalHandler struct {
	clients  clientAuthenticator
	exporter tableExporter
	maps     mapBuilder
	mapOpts  aggregation.MapOptions
	now      func() time.Time
	logger   logger.Interface
}

// NewExternalHandler takes the cluster budget and empty-ICU policy of the
// map view in mapDefaults.
func NewExternalHandler(
	clients clientAuthenticator,
	exporter tableExporter,
	maps mapBuilder,
	mapDefaults aggregation.MapOptions,
	logger logger.Interface,
) *ExternalHandler {
	return &ExternalHandler{
		clients:  clients,
		exporter: exporter,
		maps:     maps,
		mapOpts:  mapDefaults,
		now:      time.Now,
		logger:   logger,
	}
}

// DB handles GET /db/:collection?format=&max_ts=&preprocess=&API_KEY=.
func (h *ExternalHandler) DB(c *gin.Context) {
	client, ok := h.client(c, access.ScopeStats)
	if !ok {
		return
	}

	collection, err := export.ParseCollection(c.Param("collection"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusNotFound, "unknown collection")
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "unknown format")
		return
	}
	opts, err := parseExportOptions(c)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	table, err := h.exporter.Export(c.Request.Context(), client, collection, opts)
	if err != nil {
		h.logger.Errorw("export failed", "collection", collection, "client_id", client.ID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, table); err != nil {
		h.logger.Errorw("failed to write export", "collection", collection, "format", format, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
		return
	}

	if name := format.FileName(table, h.now()); name != "" {
		c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	h.logger.Infow("export served",
		"collection", collection,
		"format", format,
		"rows", len(table.Rows),
		"client_id", client.ID,
	)
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// Map handles GET /api/map?level=&covid=&API_KEY=.
func (h *ExternalHandler) Map(c *gin.Context) {
	client, ok := h.client(c, access.ScopeMap)
	if !ok {
		return
	}

	opts := h.mapOpts
	opts.Level = aggregation.LevelRegion
	if raw := c.Query("level"); raw != "" {
		level, ok := aggregation.ParseLevel(raw)
		if !ok {
			utils.ErrorResponse(c, http.StatusBadRequest, "unknown level")
			return
		}
		opts.Level = level
	}
	opts.Covid = true
	if raw := c.Query("covid"); raw != "" {
		covid, err := strconv.ParseBool(raw)
		if err != nil {
			utils.ErrorResponse(c, http.StatusBadRequest, "covid must be a boolean")
			return
		}
		opts.Covid = covid
	}
	opts.RegionIDs = client.VisibleRegionIDs()

	clusters, err := h.maps.Build(c.Request.Context(), opts)
	if err != nil {
		h.logger.Errorw("failed to build map", "client_id", client.ID, "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error occurred")
		return
	}
	c.JSON(http.StatusOK, clusters)
}

// client authenticates the API key. Every refusal answers 503 so clients
// cannot tell a wrong key from an outage.
func (h *ExternalHandler) client(c *gin.Context, scope access.Scope) (*access.ExternalClient, bool) {
	key := c.Query(constants.QueryParamAPIKey)
	if key == "" {
		key = c.GetHeader(constants.QueryParamAPIKey)
	}

	client, err := h.clients.AuthenticateClient(c.Request.Context(), key)
	if err != nil {
		if !errors.Is(err, access.ErrUnknown) {
			h.logger.Errorw("failed to authenticate client", "error", err)
		}
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "service unavailable")
		return nil, false
	}
	if !client.Scope.Allows(scope) {
		h.logger.Warnw("client scope refused", "client_id", client.ID, "scope", client.Scope, "wanted", scope)
		utils.ErrorResponse(c, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return client, true
}

func parseExportOptions(c *gin.Context) (export.Options, error) {
	var opts export.Options
	if raw := c.Query("max_ts"); raw != "" {
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, errors.New("max_ts must be a unix timestamp")
		}
		ts := time.Unix(0, int64(secs*float64(time.Second))).UTC()
		opts.MaxTS = &ts
	}
	if raw := c.Query("preprocess"); raw != "" {
		pre, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("preprocess must be a boolean")
		}
		opts.Preprocess = pre
	}
	return opts, nil
}
