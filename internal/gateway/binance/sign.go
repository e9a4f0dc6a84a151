package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// sign 计算 Binance 签名：HMAC-SHA256(secret, query string)，hex 编码。
// payload 必须与最终发出的 query 字节完全一致，签名参数追加在末尾。
func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
