// Package logging defines the shared structured logging vocabulary for
// smartinbox: attribute key constants, slog.Attr constructors, privacy
// helpers for values derived from a mailbox, and a minimal Logger interface
// for components that should not depend on a concrete backend.
//
// Log lines never carry credentials or message content. Email addresses
// are either hashed so entries stay correlatable:
//
//	logger.Info("token stored", logging.UserHash(email))
//
// or reduced to their domain:
//
//	logger.Debug("sender seen", logging.Domain(from))
//
// Classification results are logged under the shared keys so sync runs can
// be traced per account:
//
//	logger.Info("message classified",
//	    logging.Account(account),
//	    logging.Category("work"),
//	    logging.Confidence(82))
package logging
