package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/interfaces/http/dto"
)

// ParameterHandler exposes the Parameter Resolver (4.C1) over HTTP: a
// resolved read and a hierarchy-level write.
type ParameterHandler struct {
	BaseHandler
	resolver *parameter.Resolver
}

// NewParameterHandler wires a ParameterHandler.
func NewParameterHandler(resolver *parameter.Resolver) *ParameterHandler {
	return &ParameterHandler{resolver: resolver}
}

// Get handles GET /parameters?name=...&merchantId=....
func (h *ParameterHandler) Get(c *gin.Context) {
	name := c.Query("name")
	merchantID := c.Query("merchantId")
	if name == "" || merchantID == "" {
		h.BadRequest(c, "name and merchantId are required")
		return
	}

	value, source, err := h.resolver.Resolve(c.Request.Context(), name, merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ResolvedParameterResponse{
		Name:       name,
		MerchantID: merchantID,
		DataType:   string(value.DataType),
		Value:      rawValue(value),
		Source:     string(source),
	})
}

// Write handles POST /parameters.
func (h *ParameterHandler) Write(c *gin.Context) {
	var req dto.WriteParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	value, err := toParameterValue(req.Value)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	effectiveDate := req.EffectiveDate
	if effectiveDate.IsZero() {
		effectiveDate = time.Now()
	}

	p := &parameter.Parameter{
		ID:             uuid.New(),
		Name:           req.Name,
		EntityType:     parameter.EntityType(req.EntityType),
		EntityID:       req.EntityID,
		Value:          value,
		EffectiveDate:  effectiveDate,
		ExpirationDate: req.ExpirationDate,
		Overridable:    req.Overridable,
		Version:        1,
		CreatedAt:      time.Now(),
		CreatedBy:      req.CreatedBy,
	}

	if err := h.resolver.Write(c.Request.Context(), p); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gin.H{"id": p.ID.String()})
}

func toParameterValue(req dto.ParameterValueRequest) (parameter.Value, error) {
	switch parameter.DataType(req.DataType) {
	case parameter.TypeString:
		return parameter.NewStringValue(req.Str), nil
	case parameter.TypeNumber:
		return parameter.NewNumberValue(req.Num), nil
	case parameter.TypeDecimal:
		d, err := decimal.NewFromString(req.Dec)
		if err != nil {
			return parameter.Value{}, err
		}
		return parameter.NewDecimalValue(d), nil
	case parameter.TypeBoolean:
		return parameter.NewBoolValue(req.Bool), nil
	case parameter.TypeObject:
		return parameter.NewObjectValue(req.Obj), nil
	case parameter.TypeArray:
		return parameter.NewArrayValue(req.Arr), nil
	default:
		return parameter.Value{}, parameter.ErrParameterUnknown
	}
}

func rawValue(v parameter.Value) any {
	switch v.DataType {
	case parameter.TypeString:
		return v.Str
	case parameter.TypeNumber:
		return v.Num
	case parameter.TypeDecimal:
		return v.Dec.String()
	case parameter.TypeBoolean:
		return v.Bool
	case parameter.TypeObject:
		return v.Obj
	case parameter.TypeArray:
		return v.Arr
	default:
		return nil
	}
}
