package ledgerapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/change"
	"github.com/trezcool/darasa/core/record"
)

type (
	recordApi struct {
		repo      record.Repository
		reviewSvc *change.ReviewService
	}

	recordListResponse struct {
		Results []record.Entity `json:"results"`
	}
)

func registerRecordAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := recordApi{repo: deps.RecordRepo, reviewSvc: deps.ReviewSvc}

	rg := g.Group("/records", jwt)
	rg.GET("/:model_type", api.list)
	rg.GET("/:model_type/:id", api.retrieve)
}

// Handlers

func (api *recordApi) retrieve(ctx echo.Context) error {
	mt, err := pathModelType(ctx)
	if err != nil {
		return err
	}
	ent, err := api.repo.GetRecord(ctx.Request().Context(), mt, ctx.Param("id"))
	if err != nil {
		return err
	}
	pending, err := api.reviewSvc.ListPending(ctx.Request().Context(), mt)
	if err != nil {
		return err
	}
	annotate(&ent, pending)
	return ctx.JSON(http.StatusOK, ent)
}

func (api *recordApi) list(ctx echo.Context) error {
	mt, err := pathModelType(ctx)
	if err != nil {
		return err
	}
	var q record.ScopeQuery
	if raw := ctx.QueryParam("class_id"); raw != "" {
		if classID, err := strconv.Atoi(raw); err == nil {
			q.ClassID = classID
		}
	}
	q.Gender = ctx.QueryParam("gender")

	ents, err := api.repo.QueryRecords(ctx.Request().Context(), mt, q)
	if err != nil {
		return err
	}
	pending, err := api.reviewSvc.ListPending(ctx.Request().Context(), mt)
	if err != nil {
		return err
	}
	if ents == nil {
		ents = []record.Entity{}
	}
	for i := range ents {
		annotate(&ents[i], pending)
	}
	return ctx.JSON(http.StatusOK, recordListResponse{Results: ents})
}

// annotate attaches the overlay hints for the newest pending request, if any,
// targeting the entity.
func annotate(ent *record.Entity, pending []change.ChangeRequest) {
	var newest time.Time
	for _, req := range pending {
		if req.ObjectID != ent.ID || req.ModelType != ent.Type {
			continue
		}
		if ent.HasPendingChanges && !req.RequestedAt.After(newest) {
			continue
		}
		ent.HasPendingChanges = true
		ent.PendingFields = req.NewData.Clone()
		newest = req.RequestedAt
	}
}

func pathModelType(ctx echo.Context) (change.ModelType, error) {
	mt := change.ModelType(ctx.Param("model_type"))
	if !mt.Valid() {
		return "", errHTTPNotFound
	}
	return mt, nil
}
