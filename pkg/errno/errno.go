package errno

import "net/http"

// Errno 带机器可读错误码的业务错误
type Errno struct {
	Code    string // 机器可读错误码
	Message string // 用户可见消息
	Status  int    // 建议的 HTTP 状态码
}

func (e *Errno) Error() string {
	return e.Message
}

// New 创建业务错误
func New(code, message string, status int) *Errno {
	return &Errno{Code: code, Message: message, Status: status}
}

// WithMessage 返回替换了消息的副本
func (e *Errno) WithMessage(message string) *Errno {
	return &Errno{Code: e.Code, Message: message, Status: e.Status}
}

// Decode 将 error 解析为 (code, message, httpStatus)
func Decode(err error) (string, string, int) {
	if err == nil {
		return "OK", "success", http.StatusOK
	}

	if typed, ok := err.(*Errno); ok {
		return typed.Code, typed.Message, typed.Status
	}
	return InternalError.Code, err.Error(), InternalError.Status
}

// 通用错误
var (
	InternalError = &Errno{Code: "INTERNAL_ERROR", Message: "系统异常，请稍后重试", Status: http.StatusInternalServerError}
	ErrBind       = &Errno{Code: "INVALID_PARAMS", Message: "请求参数错误", Status: http.StatusBadRequest}
)

// 对账 / 补单错误
var (
	ErrOrderNotFound       = &Errno{Code: "ORDER_NOT_FOUND", Message: "订单不存在", Status: http.StatusNotFound}
	ErrInvalidOrderStatus  = &Errno{Code: "INVALID_ORDER_STATUS", Message: "只能补单已支付的订单", Status: http.StatusBadRequest}
	ErrPointsAlreadyIssued = &Errno{Code: "POINTS_ALREADY_ISSUED", Message: "积分已发放，无需补单", Status: http.StatusBadRequest}
	ErrUserNotFound        = &Errno{Code: "USER_NOT_FOUND", Message: "用户不存在", Status: http.StatusNotFound}
	ErrAutoFixBusy         = &Errno{Code: "AUTO_FIX_BUSY", Message: "该订单正在补单处理中", Status: http.StatusConflict}
)

// 订单错误
var (
	ErrPackageNotFound    = &Errno{Code: "PACKAGE_NOT_FOUND", Message: "套餐不存在", Status: http.StatusNotFound}
	ErrPackageDisabled    = &Errno{Code: "PACKAGE_DISABLED", Message: "套餐已禁用", Status: http.StatusBadRequest}
	ErrOrderStatusError   = &Errno{Code: "ORDER_STATUS_ERROR", Message: "只能取消待支付的订单", Status: http.StatusBadRequest}
	ErrRechargeNotAllowed = &Errno{Code: "RECHARGE_NOT_ALLOWED", Message: "当前无法充值", Status: http.StatusBadRequest}
	ErrDuplicatePayment   = &Errno{Code: "DUPLICATE_PAYMENT", Message: "重复支付，需要退款", Status: http.StatusBadRequest}
)

// 积分错误
var (
	ErrInsufficientPoints = &Errno{Code: "INSUFFICIENT_POINTS", Message: "积分余额不足", Status: http.StatusBadRequest}
)

// 短信验证码错误（SMS_001 ~ SMS_009）
var (
	ErrSMSInvalidPhone    = &Errno{Code: "SMS_001", Message: "请输入正确的11位手机号", Status: http.StatusBadRequest}
	ErrSMSPhoneInterval   = &Errno{Code: "SMS_002", Message: "获取验证码过于频繁，请稍后再试", Status: http.StatusTooManyRequests}
	ErrSMSPhoneDailyLimit = &Errno{Code: "SMS_003", Message: "今日获取验证码次数已达上限", Status: http.StatusTooManyRequests}
	ErrSMSSendFailed      = &Errno{Code: "SMS_004", Message: "验证码发送失败，请稍后重试", Status: http.StatusInternalServerError}
	ErrSMSCodeInvalid     = &Errno{Code: "SMS_005", Message: "验证码错误，请核对后重新输入", Status: http.StatusBadRequest}
	ErrSMSCodeExpired     = &Errno{Code: "SMS_006", Message: "验证码已过期，请重新获取", Status: http.StatusBadRequest}
	ErrSMSCodeNotFound    = &Errno{Code: "SMS_007", Message: "验证码无效或已过期", Status: http.StatusBadRequest}
	ErrSMSIPLimit         = &Errno{Code: "SMS_008", Message: "操作过于频繁，请稍后再试", Status: http.StatusTooManyRequests}
	ErrSMSSystem          = &Errno{Code: "SMS_009", Message: "系统异常，请稍后重试", Status: http.StatusInternalServerError}
)

// VIP 错误
var (
	ErrVipPackageNotFound = &Errno{Code: "VIP_PACKAGE_NOT_FOUND", Message: "VIP套餐不存在", Status: http.StatusNotFound}
	ErrVipPackageCodeDup  = &Errno{Code: "VIP_PACKAGE_CODE_DUP", Message: "套餐编码已存在", Status: http.StatusBadRequest}
)
