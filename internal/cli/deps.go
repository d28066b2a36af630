package cli

import (
	"io"

	"github.com/ironsheep/inverif/internal/config"
	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/logger"
	"github.com/ironsheep/inverif/internal/notify"
	"github.com/ironsheep/inverif/internal/ocr"
	"github.com/ironsheep/inverif/internal/readability"
)

func newLogger(cfg *config.Config, console io.Writer) *logger.ZapLogger {
	return logger.NewZapLogger(logger.Options{
		FilePath:   cfg.LogFile,
		Production: cfg.IsProduction(),
		Console:    console,
		Debug:      cfg.Debug,
	})
}

func newChecker(cfg *config.Config, log logger.Logger) (*ocr.TesseractEngine, *readability.Checker) {
	engine := ocr.NewTesseractEngine(cfg.TessdataPrefix)
	return engine, readability.NewChecker(engine, cfg.Readability(), log)
}

// newNotifier always logs receipts and also publishes them when a NATS URL
// is configured. The returned close func releases the connection.
func newNotifier(cfg *config.Config, log logger.Logger) (intake.Notifier, func(), error) {
	logNotifier := notify.NewLogNotifier(log)
	if cfg.NATSURL == "" {
		return logNotifier, func() {}, nil
	}

	nn, err := notify.NewNATSNotifier(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("cli", "publishing submissions to NATS", map[string]interface{}{
		"url":     cfg.NATSURL,
		"subject": notify.SubmissionSubject,
	})
	return notify.Multi{logNotifier, nn}, nn.Close, nil
}
