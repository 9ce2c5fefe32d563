package wardrobe

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// 👗 衣橱数据模型
// =============================================================================
// 与 internal/migration 内嵌的 wardrobe_schema 一一对应。
// JSON 形态的列（尺码表、配色、图片列表等）以原始字符串存取，
// 结构由 API 层约定。

// User 用户
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	Name         string    `json:"name"`
	AuthProvider string    `json:"auth_provider,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile 用户身材档案
type Profile struct {
	UserID              string  `gorm:"primaryKey" json:"user_id"`
	HeightCm            float64 `json:"height_cm,omitempty"`
	WeightKg            float64 `json:"weight_kg,omitempty"`
	Gender              string  `json:"gender,omitempty"`
	SkinTone            string  `json:"skin_tone,omitempty"`
	MeasurementBundleID string  `json:"measurement_bundle_id,omitempty"`
}

// Photo 用户上传的照片
type Photo struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index" json:"user_id"`
	S3KeyRaw  string    `json:"s3_key_raw,omitempty"`
	S3KeyProc string    `json:"s3_key_proc,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	PoseScore float64   `json:"pose_score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Measurement 从照片估算出的身材数据
type Measurement struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"index" json:"user_id"`
	Data         string    `json:"data,omitempty"`
	ModelVersion string    `json:"model_version,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Avatar 3D 形象
type Avatar struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"index" json:"user_id"`
	Type         string    `json:"type,omitempty"`
	Style        string    `json:"style,omitempty"`
	S3KeyPreview string    `json:"s3_key_preview,omitempty"`
	S3KeySource  string    `json:"s3_key_source,omitempty"`
	SmplParams   string    `json:"smpl_params,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Garment 衣橱里的一件服装
type Garment struct {
	ID                string `gorm:"primaryKey" json:"id"`
	SKU               string `gorm:"column:sku" json:"sku,omitempty"`
	Title             string `json:"title"`
	Brand             string `json:"brand,omitempty"`
	Category          string `gorm:"index" json:"category,omitempty"`
	Gender            string `json:"gender,omitempty"`
	SizeMap           string `json:"size_map,omitempty"`
	Colorways         string `json:"colorways,omitempty"`
	Images            string `json:"images,omitempty"`
	SegmentationMasks string `json:"segmentation_masks,omitempty"`
	// ThreeDAsset 3D 资产的来源标识（市场 UID 或 URL），
	// 解析服务以它为 origin key
	ThreeDAsset   string    `gorm:"column:three_d_asset" json:"three_d_asset,omitempty"`
	AffiliateLink string    `json:"affiliate_link,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TryonSession 一次 3D 试穿会话
type TryonSession struct {
	ID             string    `gorm:"primaryKey" json:"id"`
	UserID         string    `gorm:"index" json:"user_id"`
	AvatarID       string    `json:"avatar_id,omitempty"`
	GarmentIDs     string    `json:"garment_ids,omitempty"`
	ResultPreviews string    `json:"result_previews,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Event 埋点事件
type Event struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index" json:"user_id"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate 缺省主键用 UUID 填充
func (u *User) BeforeCreate(*gorm.DB) error         { u.ID = ensureID(u.ID); return nil }
func (p *Photo) BeforeCreate(*gorm.DB) error        { p.ID = ensureID(p.ID); return nil }
func (m *Measurement) BeforeCreate(*gorm.DB) error  { m.ID = ensureID(m.ID); return nil }
func (a *Avatar) BeforeCreate(*gorm.DB) error       { a.ID = ensureID(a.ID); return nil }
func (g *Garment) BeforeCreate(*gorm.DB) error      { g.ID = ensureID(g.ID); return nil }
func (s *TryonSession) BeforeCreate(*gorm.DB) error { s.ID = ensureID(s.ID); return nil }
func (e *Event) BeforeCreate(*gorm.DB) error        { e.ID = ensureID(e.ID); return nil }

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// AllModels 返回全部模型，dev 模式下 AutoMigrate 用
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Profile{}, &Photo{}, &Measurement{},
		&Avatar{}, &Garment{}, &TryonSession{}, &Event{},
	}
}
