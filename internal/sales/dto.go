package sales

// Request DTOs for the sales endpoints. Amounts are currency minor units.

type draftItemRequest struct {
	ProductID       int64 `json:"product_id" validate:"required,gt=0"`
	Quantity        int64 `json:"quantity" validate:"required,gt=0"`
	CustomUnitPrice int64 `json:"custom_unit_price" validate:"gte=0"`
	DiscountAmount  int64 `json:"discount_amount" validate:"gte=0"`
}

type createDraftRequest struct {
	Items []draftItemRequest `json:"items" validate:"required,min=1,dive"`
}

type tenderRequest struct {
	Method string `json:"method" validate:"required,oneof=CASH CARD DEBT"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
}

type debtorRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"required,max=32"`
}

type completeSaleRequest struct {
	Tenders []tenderRequest `json:"tenders" validate:"required,min=1,dive"`
	Debtor  *debtorRequest  `json:"debtor,omitempty"`
}

type cancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}
