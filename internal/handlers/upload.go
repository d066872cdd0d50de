package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UploadHandler issues short-lived signed credentials for direct
// browser uploads to the image CDN. The CDN contract: a one-shot token,
// a unix expiry, and hex(HMAC-SHA1(token+expire, private key)).
type UploadHandler struct {
	publicKey  string
	privateKey string
	log        *logrus.Logger
}

func NewUploadHandler(publicKey, privateKey string, log *logrus.Logger) *UploadHandler {
	return &UploadHandler{publicKey: publicKey, privateKey: privateKey, log: log}
}

type uploadAuthResponse struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
}

const uploadCredentialTTL = 30 * time.Minute

func (h *UploadHandler) Auth(w http.ResponseWriter, _ *http.Request) {
	if h.privateKey == "" {
		serverError(w, h.log, "image uploads are not configured", nil)
		return
	}

	token := uuid.NewString()
	expire := time.Now().Add(uploadCredentialTTL).Unix()

	mac := hmac.New(sha1.New, []byte(h.privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))

	respondJSON(w, http.StatusOK, uploadAuthResponse{
		Token:     token,
		Expire:    expire,
		Signature: hex.EncodeToString(mac.Sum(nil)),
	})
}
