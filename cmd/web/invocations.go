package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Eventual-Inc/modelfn/cmd/web/errors"
	"github.com/Eventual-Inc/modelfn/cmd/web/model"
	"github.com/Eventual-Inc/modelfn/pkg/inference"
	pkgmodel "github.com/Eventual-Inc/modelfn/pkg/model"
)

const requestIDHeader = "X-Request-Id"

// InvocationsPostHandler godoc
// @Summary      Create a model invocation
// @Description  Runs the model on a table of inputs. The body is a columnar object, a list of records or a matrix, optionally wrapped in "inputs".
// @Tags         invocations
// @Accept       json
// @Produce      json
// @Param        invocation  body      model.CreateInvocation  true  "Model inputs"
// @Success      200         {object}  model.CreateInvocationSuccess
// @Failure      400         {object}  inference.HTTPError
// @Failure      422         {object}  inference.HTTPError
// @Failure      500         {object}  inference.HTTPError
// @Failure      502         {object}  inference.HTTPError
// @Router       /invocations [post]
func (s *webServer) InvocationsPostHandler(ctx *gin.Context) {
	raw, err := ctx.GetRawData()
	if err != nil {
		errors.NewError(ctx, fmt.Errorf("%w: unable to read body: %v", inference.ErrInvalidRequest, err))
		return
	}
	id := ctx.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	ctx.Header(requestIDHeader, id)

	reqCtx := inference.WithRequestID(ctx.Request.Context(), id)
	predictions, err := s.handler.Predict(reqCtx, inference.Event{Body: raw})
	if err != nil {
		errors.NewError(ctx, err)
		return
	}
	// non-finite regression outputs cannot be rendered as JSON
	body, err := json.Marshal(model.CreateInvocationSuccess{ID: id, Predictions: predictions})
	if err != nil {
		errors.NewError(ctx, fmt.Errorf("%w: unable to encode predictions: %v", pkgmodel.ErrPredict, err))
		return
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
