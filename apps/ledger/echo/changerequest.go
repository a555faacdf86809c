package ledgerapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/change"
)

type (
	changeRequestApi struct {
		reviewSvc *change.ReviewService
		submitSvc *change.Service
	}

	reviewRequest struct {
		Notes string `json:"notes"`
	}

	pendingResponse struct {
		Count    int                    `json:"count"`
		Requests []change.ChangeRequest `json:"pending_requests"`
	}
	approvedResponse struct {
		Requests []change.ChangeRequest `json:"approved_requests"`
	}
	rejectedResponse struct {
		Requests []change.ChangeRequest `json:"rejected_requests"`
	}
)

func registerChangeRequestAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := changeRequestApi{reviewSvc: deps.ReviewSvc, submitSvc: deps.SubmitSvc}

	cg := g.Group("/change-requests", jwt)
	cg.GET("/pending", api.listPending)
	cg.GET("/approved", api.listApproved)
	cg.GET("/rejected", api.listRejected)
	cg.POST("", api.submit)

	// review endpoints
	dg := cg.Group("/:id", adminMiddleware())
	dg.GET("", api.retrieve)
	dg.POST("/approve", api.approve)
	dg.POST("/reject", api.reject)
}

// Handlers

func (api *changeRequestApi) listPending(ctx echo.Context) error {
	reqs, err := api.reviewSvc.ListByStatus(ctx.Request().Context(), change.StatusPending, change.Cursor{}, queryTypes(ctx)...)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []change.ChangeRequest{}
	}
	return ctx.JSON(http.StatusOK, pendingResponse{Count: len(reqs), Requests: reqs})
}

func (api *changeRequestApi) listApproved(ctx echo.Context) error {
	reqs, err := api.reviewSvc.ListByStatus(ctx.Request().Context(), change.StatusApproved, queryCursor(ctx), queryTypes(ctx)...)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []change.ChangeRequest{}
	}
	return ctx.JSON(http.StatusOK, approvedResponse{Requests: reqs})
}

func (api *changeRequestApi) listRejected(ctx echo.Context) error {
	reqs, err := api.reviewSvc.ListByStatus(ctx.Request().Context(), change.StatusRejected, queryCursor(ctx), queryTypes(ctx)...)
	if err != nil {
		return err
	}
	if reqs == nil {
		reqs = []change.ChangeRequest{}
	}
	return ctx.JSON(http.StatusOK, rejectedResponse{Requests: reqs})
}

func (api *changeRequestApi) submit(ctx echo.Context) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	data := new(change.NewChangeRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	cr, err := api.submitSvc.Submit(ctx.Request().Context(), sess, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cr)
}

func (api *changeRequestApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	cr, err := api.reviewSvc.Get(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cr)
}

func (api *changeRequestApi) approve(ctx echo.Context) error {
	return api.review(ctx, change.StatusApproved)
}

func (api *changeRequestApi) reject(ctx echo.Context) error {
	return api.review(ctx, change.StatusRejected)
}

func (api *changeRequestApi) review(ctx echo.Context, status change.Status) error {
	sess, err := contextSession(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	data := new(reviewRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	var cr change.ChangeRequest
	if status == change.StatusApproved {
		cr, err = api.reviewSvc.Approve(ctx.Request().Context(), sess, id, data.Notes)
	} else {
		cr, err = api.reviewSvc.Reject(ctx.Request().Context(), sess, id, data.Notes)
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cr)
}

// helpers

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHTTPNotFound
	}
	return id, nil
}

func queryTypes(ctx echo.Context) []change.ModelType {
	var types []change.ModelType
	for _, raw := range ctx.QueryParams()["model_type"] {
		if mt := change.ModelType(raw); mt.Valid() {
			types = append(types, mt)
		}
	}
	return types
}

func queryCursor(ctx echo.Context) change.Cursor {
	var cur change.Cursor
	if raw := ctx.QueryParam("since"); raw != "" {
		if seq, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cur.Seq = seq
		}
	}
	return cur
}
