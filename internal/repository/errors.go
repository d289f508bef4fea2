package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	//同じexternal_order_refがすでにcompleted
	ErrAlreadyFinalized = errors.New("order already finalized")

	//同じ注文の明細がすでに保存済み（再送）
	ErrAlreadyRecorded = errors.New("order items already recorded")

	//completed済みの注文に別のpayment_refが来た
	ErrPaymentRefMismatch = errors.New("payment ref mismatch")

	//unique制約違反
	ErrDuplicate = errors.New("duplicate")
)
