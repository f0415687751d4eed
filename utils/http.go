// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by outbound fetches (avatar downloads).
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
