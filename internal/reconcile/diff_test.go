package reconcile

import "testing"

func passingFixture() (QuoteFigures, ContractClaim) {
	quote := QuoteFigures{
		Vin:            "1ABCDEFG2H3I45678",
		Year:           2025,
		Make:           "Toyota",
		Model:          "Grand Highlander",
		Trim:           "Limited",
		Msrp:           decPtr(50000),
		DealerDiscount: decPtr(-1500),
		DocFee:         decPtr(150),
		DmvFee:         decPtr(180),
		TireBatteryFee: decPtr(25),
		TaxRate:        decPtr(0.1025),
		TaxAmount:      decPtr(5000),
		OTDTotal:       decPtr(52000),
		Incentives: []LineItem{
			{Name: "Toyota Cash", Amount: dec(-750)},
			{Name: "Holiday Bonus", Amount: dec(-250)},
		},
	}
	claim := ContractClaim{
		Vin:            "1ABCDEFG2H3I45678",
		Year:           2025,
		Make:           "Toyota",
		Model:          "Grand Highlander",
		Trim:           "Limited",
		Msrp:           dec(50000),
		DealerDiscount: dec(-1500),
		Incentives: []LineItem{
			{Name: "Holiday Bonus", Amount: dec(-250)},
			{Name: "Toyota Cash", Amount: dec(-750)},
		},
		Fees: ClaimedFees{
			DocFee:         dec(150),
			DmvFee:         dec(180),
			TireBatteryFee: dec(25),
		},
		TaxRate:   dec(0.1025),
		TaxAmount: dec(5000),
		OTDTotal:  dec(52000),
	}
	return quote, claim
}

func findCheck(t *testing.T, report Report, field string) CheckResult {
	t.Helper()
	for _, check := range report {
		if check.Field == field {
			return check
		}
	}
	t.Fatalf("check %q not found", field)
	return CheckResult{}
}

func TestBuildReportAllPass(t *testing.T) {
	quote, claim := passingFixture()
	report := BuildReport(quote, claim)

	if !report.AllPass() {
		t.Fatalf("expected full pass, failing: %+v", report.Failing())
	}

	order := []string{"vin", "year", "make", "model", "trim", "msrp", "dealerDiscount", "incentives", "fees", "addons", "taxRate", "taxAmount", "otdTotal"}
	if len(report) != len(order) {
		t.Fatalf("expected %d checks got %d", len(order), len(report))
	}
	for i, field := range order {
		if report[i].Field != field {
			t.Fatalf("check %d: expected field %q got %q", i, field, report[i].Field)
		}
	}
}

func TestBuildReportReorderedIncentivesPass(t *testing.T) {
	quote, claim := passingFixture()
	report := BuildReport(quote, claim)

	if check := findCheck(t, report, "incentives"); !check.Pass {
		t.Fatalf("reordered incentives should pass: %+v", check)
	}
}

func TestBuildReportFeeMismatchReportsFailingKey(t *testing.T) {
	quote, claim := passingFixture()
	claim.Fees.DmvFee = dec(195)

	report := BuildReport(quote, claim)
	check := findCheck(t, report, "fees")
	if check.Pass {
		t.Fatal("expected fee check to fail")
	}
	if check.Notes != "Mismatch: dmvfee" {
		t.Fatalf("expected dmvfee in notes got %q", check.Notes)
	}
	if report.AllPass() {
		t.Fatal("report should not pass overall")
	}
}

func TestBuildReportUnapprovedAddonFails(t *testing.T) {
	quote, claim := passingFixture()
	claim.Addons = []ClaimedAddon{
		{Name: "Paint Protection", Amount: dec(899), ApprovedByBuyer: true},
		{Name: "Nitrogen package", Amount: dec(399), ApprovedByBuyer: false},
	}

	report := BuildReport(quote, claim)
	check := findCheck(t, report, "addons")
	if check.Pass {
		t.Fatal("expected addon check to fail")
	}
	if check.Notes != "Unapproved addons present" {
		t.Fatalf("unexpected notes %q", check.Notes)
	}
}

func TestBuildReportCanonicalFeeLinesNotDoubleCounted(t *testing.T) {
	quote, claim := passingFixture()
	quote.FeeLines = []LineItem{
		{Name: "Doc Fee", Amount: dec(150)},
		{Name: "DMV / Registration", Amount: dec(180)},
		{Name: "Tire & Battery", Amount: dec(25)},
		{Name: "Electronic Filing", Amount: dec(30)},
	}
	claim.Fees.OtherFees = []LineItem{{Name: "Electronic Filing", Amount: dec(30)}}

	report := BuildReport(quote, claim)
	if check := findCheck(t, report, "fees"); !check.Pass {
		t.Fatalf("canonical lines should be excluded from other fees: %+v", check)
	}
}

func TestBuildReportTaxToleranceWiderThanDefault(t *testing.T) {
	quote, claim := passingFixture()
	claim.TaxAmount = dec(5002)
	claim.OTDTotal = dec(52002)

	report := BuildReport(quote, claim)
	if check := findCheck(t, report, "taxAmount"); !check.Pass {
		t.Fatalf("tax within $2 should pass: %+v", check)
	}
	if check := findCheck(t, report, "otdTotal"); check.Pass {
		t.Fatal("otd total uses the default tolerance and should fail")
	}
}

func TestBuildReportAbsentQuoteFigure(t *testing.T) {
	quote, claim := passingFixture()
	quote.TaxAmount = nil
	claim.TaxAmount = dec(5000)

	report := BuildReport(quote, claim)
	if check := findCheck(t, report, "taxAmount"); check.Pass {
		t.Fatal("contract must not introduce a tax amount the quote never recorded")
	}

	claim.TaxAmount = dec(1)
	report = BuildReport(quote, claim)
	if check := findCheck(t, report, "taxAmount"); !check.Pass {
		t.Fatalf("absent figure treats expected as zero within tolerance: %+v", check)
	}
}

func TestBuildReportIdentityMismatch(t *testing.T) {
	quote, claim := passingFixture()
	claim.Vin = "9ZZZZZZZZZZZZZZZZ"

	report := BuildReport(quote, claim)
	if check := findCheck(t, report, "vin"); check.Pass {
		t.Fatal("vin mismatch must fail")
	}
}

func TestBuildReportDeterministic(t *testing.T) {
	quote, claim := passingFixture()
	claim.Fees.DmvFee = dec(195)
	claim.Addons = []ClaimedAddon{{Name: "Nitrogen package", Amount: dec(899)}}

	first := BuildReport(quote, claim)
	second := BuildReport(quote, claim)

	if len(first) != len(second) {
		t.Fatalf("report lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Field != second[i].Field || first[i].Pass != second[i].Pass || first[i].Notes != second[i].Notes {
			t.Fatalf("check %d differs between runs", i)
		}
	}
}
