package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/store"
	"github.com/BaSui01/fitroom/tryon"
	"github.com/BaSui01/fitroom/types"
	"github.com/BaSui01/fitroom/wardrobe"
)

// =============================================================================
// 👗 衣橱 Handler
// =============================================================================

// WardrobeHandler 衣橱端点处理器
type WardrobeHandler struct {
	store  *wardrobe.Store
	assets *store.Service
	tryon  *tryon.Provider
	logger *zap.Logger
}

// NewWardrobeHandler 创建衣橱处理器
func NewWardrobeHandler(wstore *wardrobe.Store, assetSvc *store.Service, provider *tryon.Provider, logger *zap.Logger) *WardrobeHandler {
	return &WardrobeHandler{
		store:  wstore,
		assets: assetSvc,
		tryon:  provider,
		logger: logger.With(zap.String("component", "wardrobe_handler")),
	}
}

// ---------------------------------------------------------------------------
// 服装
// ---------------------------------------------------------------------------

// HandleListGarments 处理 GET /api/v1/garments
func (h *WardrobeHandler) HandleListGarments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	garments, err := h.store.ListGarments(r.Context(), wardrobe.GarmentFilter{
		Category: q.Get("category"),
		Gender:   q.Get("gender"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, garments)
}

// HandleCreateGarment 处理 POST /api/v1/garments
func (h *WardrobeHandler) HandleCreateGarment(w http.ResponseWriter, r *http.Request) {
	var garment wardrobe.Garment
	if err := DecodeJSONBody(w, r, &garment, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(garment.Title) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "title is required", h.logger)
		return
	}

	if err := h.store.CreateGarment(r.Context(), &garment); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: garment})
}

// HandleGetGarment 处理 GET /api/v1/garments/{id}。带 3D 资产来源的
// 服装附上资产服务器地址（已缓存时无需再次解析）。
func (h *WardrobeHandler) HandleGetGarment(w http.ResponseWriter, r *http.Request) {
	garment, err := h.store.GetGarment(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	payload := struct {
		*wardrobe.Garment
		AssetURL string `json:"asset_url,omitempty"`
	}{Garment: garment}

	if garment.ThreeDAsset != "" {
		if res, err := h.assets.Resolve(r.Context(), garment.ThreeDAsset); err == nil {
			payload.AssetURL = res.URL
		} else {
			h.logger.Warn("garment asset resolution failed",
				zap.String("garment", garment.ID),
				zap.String("origin", garment.ThreeDAsset),
				zap.Error(err),
			)
		}
	}
	WriteSuccess(w, payload)
}

// ---------------------------------------------------------------------------
// 形象与照片
// ---------------------------------------------------------------------------

// HandleCreateAvatar 处理 POST /api/v1/avatars
func (h *WardrobeHandler) HandleCreateAvatar(w http.ResponseWriter, r *http.Request) {
	var avatar wardrobe.Avatar
	if err := DecodeJSONBody(w, r, &avatar, h.logger); err != nil {
		return
	}
	if avatar.UserID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "user_id is required", h.logger)
		return
	}

	if err := h.store.CreateAvatar(r.Context(), &avatar); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: avatar})
}

// HandleGetAvatar 处理 GET /api/v1/avatars/{id}
func (h *WardrobeHandler) HandleGetAvatar(w http.ResponseWriter, r *http.Request) {
	avatar, err := h.store.GetAvatar(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, avatar)
}

// HandleCreatePhoto 处理 POST /api/v1/photos
func (h *WardrobeHandler) HandleCreatePhoto(w http.ResponseWriter, r *http.Request) {
	var photo wardrobe.Photo
	if err := DecodeJSONBody(w, r, &photo, h.logger); err != nil {
		return
	}
	if photo.UserID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "user_id is required", h.logger)
		return
	}

	if err := h.store.CreatePhoto(r.Context(), &photo); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: photo})
}

// HandleGetPhoto 处理 GET /api/v1/photos/{id}
func (h *WardrobeHandler) HandleGetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, err := h.store.GetPhoto(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, photo)
}

// estimateRequest 身材估算请求体
type estimateRequest struct {
	// Data 估算输入/输出的 JSON 负载，由上游估算服务产出
	Data         string `json:"data,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
}

// HandleEstimateMeasurements 处理 POST /api/v1/measurements/{photo_id}/estimate：
// 校验照片存在后登记一条估算记录
func (h *WardrobeHandler) HandleEstimateMeasurements(w http.ResponseWriter, r *http.Request) {
	photo, err := h.store.GetPhoto(r.Context(), r.PathValue("photo_id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	var req estimateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.ModelVersion == "" {
		req.ModelVersion = "heuristic-v1"
	}

	m := &wardrobe.Measurement{
		UserID:       photo.UserID,
		Data:         req.Data,
		ModelVersion: req.ModelVersion,
	}
	if err := h.store.CreateMeasurement(r.Context(), m); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: m})
}

// ---------------------------------------------------------------------------
// 2D 试穿
// ---------------------------------------------------------------------------

// tryonRequest 2D 试穿请求体
type tryonRequest struct {
	UserID          string   `json:"user_id"`
	AvatarID        string   `json:"avatar_id,omitempty"`
	GarmentIDs      []string `json:"garment_ids,omitempty"`
	PersonImageURL  string   `json:"person_image_url"`
	GarmentImageURL string   `json:"garment_image_url"`
	Category        string   `json:"category,omitempty"`
}

// HandleCreateTryon 处理 POST /api/v1/tryon：建会话，调用外部图像
// 生成 API，回填结果
func (h *WardrobeHandler) HandleCreateTryon(w http.ResponseWriter, r *http.Request) {
	var req tryonRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.UserID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "user_id is required", h.logger)
		return
	}

	session := &wardrobe.TryonSession{
		UserID:     req.UserID,
		AvatarID:   req.AvatarID,
		GarmentIDs: marshalStrings(req.GarmentIDs),
	}
	if err := h.store.CreateTryonSession(r.Context(), session); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	h.store.RecordEvent(r.Context(), &wardrobe.Event{
		UserID:  req.UserID,
		Type:    "tryon_started",
		Payload: `{"session":"` + session.ID + `"}`,
	})

	result, err := h.tryon.TryOn(r.Context(), &tryon.Request{
		PersonImageURL:  req.PersonImageURL,
		GarmentImageURL: req.GarmentImageURL,
		Category:        req.Category,
	})
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}

	previews := marshalStrings([]string{result.ImageURL})
	if err := h.store.UpdateTryonResult(r.Context(), session.ID, previews); err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	session.ResultPreviews = previews

	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: session})
}

// HandleGetTryon 处理 GET /api/v1/tryon/{id}
func (h *WardrobeHandler) HandleGetTryon(w http.ResponseWriter, r *http.Request) {
	session, err := h.store.GetTryonSession(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, session)
}

// marshalStrings 把字符串列表编码成 JSON 数组字面量
func marshalStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	out, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(out)
}
