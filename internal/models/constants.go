package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	PaymentUnpaid  = "unpaid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

const (
	AvailabilityAvailable = "available"
	AvailabilityRented    = "rented"
)

const (
	AccountDriver = "driver"
	AccountAgent  = "agent"
)

// Ledger reasons.
const (
	ReasonLateFee = "late_fee"
	ReasonRefund  = "refund"
	ReasonManual  = "manual"
)

// Settlement actions, also used as audit action names.
const (
	ActionConfirm      = "confirm"
	ActionFinish       = "finish"
	ActionCancel       = "cancel"
	ActionBackdateEdit = "backdate-edit"
	ActionPromote      = "promote"
	ActionEnableFinish = "enable-finish"
	ActionRetryStep    = "retry-step"
	ActionAdjust       = "adjust"
)

// Side-effect steps that can fail after a status write.
const (
	StepLedger              = "ledger"
	StepVehicleAvailability = "vehicle-availability"
)

const (
	// DefaultIdempotencyTTL время жизни сохранённого ответа, секунды
	DefaultIdempotencyTTL = 24 * 60 * 60

	// DefaultActionLimit число мутирующих действий одного администратора в окне
	DefaultActionLimit = 30

	// DefaultActionWindow окно ограничения, секунды
	DefaultActionWindow = 60

	// WorkerQueueSize размер локальной очереди уведомлений
	WorkerQueueSize = 128
)

// IsValidReason reports whether reason is a known ledger reason.
func IsValidReason(reason string) bool {
	switch reason {
	case ReasonLateFee, ReasonRefund, ReasonManual:
		return true
	}
	return false
}
