package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"secure_messaging_service/pkg/config"
	"secure_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// PprofAddr pprof only listens on loopback
const PprofAddr = "127.0.0.1:6060"

// StartPprof 非 production 環境時啟動 pprof 監控伺服器
//
//	go tool pprof http://127.0.0.1:6060/debug/pprof/heap
func StartPprof() {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", PprofAddr))
		if err := http.ListenAndServe(PprofAddr, nil); err != nil {
			logger.Log.Warn("pprof server failed", zap.Error(err))
		}
	}()
}
