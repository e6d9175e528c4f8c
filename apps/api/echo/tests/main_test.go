package tests

import (
	"os"
	"testing"
	"time"

	"github.com/touchline/academy/core"
	"github.com/touchline/academy/core/user"
	"github.com/touchline/academy/testutil"
)

func TestMain(m *testing.M) {
	core.Conf.TestMode = true
	core.Conf.Debug = false
	core.Conf.Billing.Currency = "EUR"
	core.Conf.Billing.InvoiceDueDays = 14
	core.Conf.Billing.ReminderInterval = 7 * 24 * time.Hour
	core.Conf.CheckInLateAfter = 10 * time.Minute

	if err := core.ParseEmailTemplates(); err != nil {
		panic(err)
	}
	user.LoadCommonPasswords(&testutil.DiscardLogger{})

	os.Exit(m.Run())
}
