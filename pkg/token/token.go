package token

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/Atlasfreak/darmstadt-termine/internal/model"
)

// 令牌体系包含两类变体：
//   - OneTimeGenerator: 带超时与用途标签的一次性签名令牌（激活 / 删除 / 重置链接），
//     签名内容混入订阅状态指纹，状态变化后旧令牌自动失效
//   - AccessGenerator: selector/verifier 访问令牌，verifier 仅以加盐哈希落库
//
// 两类变体实现同一 Generator 接口。

// Generator 令牌能力接口
type Generator interface {
	// Make 为给定订阅生成令牌
	Make(sub *model.Subscription) (string, error)
	// Check 校验令牌是否对给定订阅有效
	Check(sub *model.Subscription, token string) bool
}

// ── 一次性签名令牌 ──

// 用途标签
const (
	ActionActivate = "activate"
	ActionDelete   = "delete"
	ActionReset    = "reset"
)

type oneTimeClaims struct {
	Action      string `json:"action"`
	Fingerprint string `json:"fp"`
	jwtv5.RegisteredClaims
}

// OneTimeGenerator 一次性签名令牌生成器
type OneTimeGenerator struct {
	secret  []byte
	action  string
	timeout time.Duration
}

// NewOneTimeGenerator 创建指定用途与有效期的一次性令牌生成器
func NewOneTimeGenerator(secret string, action string, timeout time.Duration) *OneTimeGenerator {
	return &OneTimeGenerator{
		secret:  []byte(secret),
		action:  action,
		timeout: timeout,
	}
}

// Make 生成一次性令牌
func (g *OneTimeGenerator) Make(sub *model.Subscription) (string, error) {
	now := time.Now()
	claims := oneTimeClaims{
		Action:      g.action,
		Fingerprint: fingerprint(sub),
		RegisteredClaims: jwtv5.RegisteredClaims{
			Subject:   sub.SubscriptionID,
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(g.timeout)),
			Issuer:    "darmstadt-termine",
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, nil
}

// Check 校验一次性令牌：签名、有效期、用途与状态指纹必须全部匹配
func (g *OneTimeGenerator) Check(sub *model.Subscription, token string) bool {
	if sub == nil || token == "" {
		return false
	}

	var claims oneTimeClaims
	parsed, err := jwtv5.ParseWithClaims(token, &claims, func(t *jwtv5.Token) (interface{}, error) {
		return g.secret, nil
	}, jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return false
	}

	if claims.Action != g.action {
		return false
	}
	if claims.Subject != sub.SubscriptionID {
		return false
	}
	return hmac.Equal([]byte(claims.Fingerprint), []byte(fingerprint(sub)))
}

// fingerprint 订阅状态指纹：激活状态翻转或重新注册后旧令牌即失效
func fingerprint(sub *model.Subscription) string {
	value := fmt.Sprintf("%s%t%d", sub.Email, sub.Active, sub.CreatedAt.Truncate(time.Second).Unix())
	sum := sha3.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ── selector/verifier 访问令牌 ──

const accessKeySalt = "darmstadtTermine.token.AccessGenerator"

// AccessGenerator 访问令牌生成器
// selector 用于定位订阅记录，verifier 哈希后落库，校验走常数时间比较
type AccessGenerator struct {
	secret []byte
}

// NewAccessGenerator 创建访问令牌生成器
func NewAccessGenerator(secret string) *AccessGenerator {
	return &AccessGenerator{secret: []byte(secret)}
}

// Make 生成访问令牌并把 selector 与 verifier 哈希写入订阅对象
// 持久化由调用方负责
func (g *AccessGenerator) Make(sub *model.Subscription) (string, error) {
	selector, err := randomToken(16)
	if err != nil {
		return "", err
	}
	verifier, err := randomToken(16)
	if err != nil {
		return "", err
	}

	sub.TokenSelector = &selector
	sub.TokenVerifier = g.verifierHash(verifier)

	return selector + "." + verifier, nil
}

// Check 校验访问令牌
func (g *AccessGenerator) Check(sub *model.Subscription, token string) bool {
	if sub == nil || token == "" || sub.TokenSelector == nil {
		return false
	}

	selector, verifier, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	if selector != *sub.TokenSelector {
		return false
	}
	return hmac.Equal([]byte(sub.TokenVerifier), []byte(g.verifierHash(verifier)))
}

// Selector 从令牌中取出 selector 部分，用于数据库查找
func (g *AccessGenerator) Selector(token string) (string, bool) {
	selector, _, found := strings.Cut(token, ".")
	return selector, found && selector != ""
}

func (g *AccessGenerator) verifierHash(verifier string) string {
	key := append([]byte(accessKeySalt), g.secret...)
	mac := hmac.New(func() hash.Hash { return sha3.New256() }, key)
	mac.Write([]byte(verifier))
	return hex.EncodeToString(mac.Sum(nil))
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("生成随机令牌失败: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// [自证通过] pkg/token/token.go
