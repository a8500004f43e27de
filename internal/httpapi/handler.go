package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hupe1980/biomatch"
	"github.com/hupe1980/biomatch/model"
	"github.com/hupe1980/biomatch/store"
)

// Handler exposes the matching engine over REST.
type Handler struct {
	engine *biomatch.Engine
}

// NewHandler creates a Handler over the given engine.
func NewHandler(engine *biomatch.Engine) *Handler {
	return &Handler{engine: engine}
}

// Register handles POST /api/v1/biometric/register. Multipart form: "type"
// (face|palm), "image" (file), optional "metadata" (JSON object of strings).
func (h *Handler) Register(c *fiber.Ctx) error {
	t, image, err := parseSample(c)
	if err != nil {
		return badRequest(c, err)
	}

	metadata, err := parseMetadata(c.FormValue("metadata"))
	if err != nil {
		return badRequest(c, err)
	}

	rec, err := h.engine.Register(c.UserContext(), t, image, metadata)
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toRecordResponse(rec))
}

// Compare handles POST /api/v1/biometric/compare. Same multipart form as
// Register minus metadata.
func (h *Handler) Compare(c *fiber.Ctx) error {
	t, image, err := parseSample(c)
	if err != nil {
		return badRequest(c, err)
	}

	match, err := h.engine.Compare(c.UserContext(), t, image)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(CompareResponse{
		ID:     match.ID,
		Score:  match.Score,
		Record: toRecordResponse(match.Record),
	})
}

// List handles GET /api/v1/biometric. Query params: page, limit, type, and
// meta.<key>=<value> metadata equality filters.
func (h *Handler) List(c *fiber.Ctx) error {
	opts := store.ListOptions{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", store.DefaultPageSize),
	}

	if s := c.Query("type"); s != "" {
		t, err := model.ParseType(s)
		if err != nil {
			return badRequest(c, err)
		}
		opts.Type = t
	}

	filter := store.Filter{}
	for key, values := range c.Queries() {
		if k, ok := strings.CutPrefix(key, "meta."); ok && k != "" {
			filter[k] = values
		}
	}
	if len(filter) > 0 {
		opts.Filter = filter
	}

	recs, total, err := h.engine.List(c.UserContext(), opts)
	if err != nil {
		return writeError(c, err)
	}

	data := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		data = append(data, toRecordResponse(rec))
	}

	return c.JSON(ListResponse{
		Data:  data,
		Total: total,
		Page:  opts.Page,
		Limit: opts.Limit,
	})
}

// Get handles GET /api/v1/biometric/:id.
func (h *Handler) Get(c *fiber.Ctx) error {
	rec, err := h.engine.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(toRecordResponse(rec))
}

// Delete handles DELETE /api/v1/biometric/:id.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.engine.Delete(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Health handles GET /healthz.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func parseSample(c *fiber.Ctx) (model.Type, []byte, error) {
	t, err := model.ParseType(c.FormValue("type"))
	if err != nil {
		return "", nil, err
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return "", nil, errors.New("image file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	image, err := io.ReadAll(f)
	if err != nil {
		return "", nil, err
	}

	return t, image, nil
}

func parseMetadata(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}

	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, errors.New("metadata must be a JSON object of strings")
	}

	return metadata, nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
}

// writeError maps engine errors onto HTTP status codes.
func writeError(c *fiber.Ctx, err error) error {
	var dup *biomatch.ErrDuplicateBiometric
	if errors.As(err, &dup) {
		score := dup.Score
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:      "duplicate biometric",
			ConflictID: dup.ConflictID,
			Score:      &score,
		})
	}

	switch {
	case errors.Is(err, biomatch.ErrNoMatch):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no match found"})
	case errors.Is(err, biomatch.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "record not found"})
	case errors.Is(err, biomatch.ErrUnprocessableBiometric):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: "no usable biometric in sample"})
	case errors.Is(err, biomatch.ErrInvalidType):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, biomatch.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "store unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
}
