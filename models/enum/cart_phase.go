package enum

// CartPhase 表示購物車在記憶體中的狀態
type CartPhase string

const (
	CartPhaseUninitialized CartPhase = "uninitialized" // 尚未從儲存載入
	CartPhaseReady         CartPhase = "ready"         // 已載入，可接受變更
)
