package refund

// Status is the lifecycle state of a RefundRequest.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusSubmitted        Status = "SUBMITTED"
	StatusValidationFailed Status = "VALIDATION_FAILED"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusProcessing       Status = "PROCESSING"
	StatusGatewayPending   Status = "GATEWAY_PENDING"
	StatusGatewayError     Status = "GATEWAY_ERROR"
	StatusCompleted        Status = "COMPLETED"
	StatusFailed           Status = "FAILED"
	StatusRejected         Status = "REJECTED"
	StatusCanceled         Status = "CANCELED"
)

// terminal states are absorbing: once reached, no further status mutation is permitted.
var terminalStatuses = map[Status]bool{
	StatusCompleted:        true,
	StatusFailed:           true,
	StatusRejected:         true,
	StatusCanceled:         true,
	StatusValidationFailed: true,
}

// IsTerminal reports whether s is an absorbing state.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// validTransitions enumerates the allowed state graph from 4.M1.
var validTransitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusSubmitted: true,
	},
	StatusSubmitted: {
		StatusValidationFailed: true,
		StatusPendingApproval:  true,
		StatusProcessing:       true,
	},
	StatusPendingApproval: {
		StatusProcessing: true,
		StatusRejected:   true,
		StatusCanceled:   true,
	},
	StatusProcessing: {
		StatusGatewayPending: true,
		StatusGatewayError:   true,
		StatusCompleted:      true,
		StatusFailed:         true,
		StatusCanceled:       true,
	},
	StatusGatewayPending: {
		StatusCompleted:    true,
		StatusFailed:       true,
		StatusGatewayError: true,
	},
	StatusGatewayError: {
		StatusProcessing: true, // retry
		StatusFailed:     true, // exhausted
	},
}

// CanTransition reports whether a move from s to next is legal.
// Terminal states are absorbing: nothing transitions out of them.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return validTransitions[s][next]
}

// ApprovalStatus tracks the approval sub-state of a refund.
type ApprovalStatus string

const (
	ApprovalNone      ApprovalStatus = "NONE"
	ApprovalPending   ApprovalStatus = "PENDING"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
	ApprovalEscalated ApprovalStatus = "ESCALATED"
)

// Method is how the refund is delivered to the customer.
type Method string

const (
	MethodOriginalPayment Method = "ORIGINAL_PAYMENT"
	MethodBalance         Method = "BALANCE"
	MethodOther           Method = "OTHER"
)
