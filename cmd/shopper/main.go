package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"smart-supermarket/internal/dto"
	"smart-supermarket/internal/pkg/serverutils"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
)

// Walks one shopper through a running kiosk: identify, optional survey,
// then recommendations.
func main() {
	baseURL := flag.String("api", "http://localhost:8080/api", "kiosk API base URL")
	userType := flag.String("type", "login", "signup or login")
	userName := flag.String("name", "", "display name for signup")
	aisles := flag.String("aisles", "", "comma separated aisle names for the survey; empty uses purchase history")
	n := flag.Int("n", 10, "number of recommendations per section")
	listMoods := flag.Bool("moods", false, "print the supported moods and exit")
	flag.Parse()

	client := resty.New().SetBaseURL(*baseURL).SetTimeout(90 * time.Second)

	if *listMoods {
		var moods []string
		must(call(client, "GET", "/moods", nil, &moods))
		color.Cyan("Supported moods: %s", strings.Join(moods, ", "))
		return
	}

	color.Cyan("🛒 Starting kiosk journey at %s\n", *baseURL)

	color.Yellow("\n1. Camera")
	var j dto.JourneyResponse
	must(call(client, "POST", "/camera/start", nil, &j))
	color.Green("Camera %s (preview ready: %t)", j.Camera.State, j.Camera.PreviewReady)

	color.Yellow("\n2. Identify (%s)", *userType)
	var id dto.IdentifyResponse
	must(call(client, "POST", "/identify", dto.IdentifyRequest{UserType: *userType, UserName: *userName}, &id))
	if id.UserID != nil {
		color.Green("%s: user %d %s, mood %s", id.Outcome, *id.UserID, id.UserName, id.Mood)
	} else {
		color.Green("%s: %s", id.Outcome, id.Message)
	}

	must(call(client, "GET", "/journey", nil, &j))
	if !j.Session.IsLoggedIn {
		color.Yellow("Not logged in yet (%s). Run again with -type login.", j.State)
		return
	}

	var recs dto.RecommendationsResponse
	path := fmt.Sprintf("/recommendations?n=%d", *n)
	if *aisles != "" {
		color.Yellow("\n3. Survey")
		var survey dto.SurveyResponse
		must(call(client, "GET", "/survey/aisles", nil, &survey))
		selected := map[string]bool{}
		for _, name := range survey.Selected {
			selected[name] = true
		}
		for _, name := range strings.Split(*aisles, ",") {
			name = strings.TrimSpace(name)
			if name == "" || selected[name] {
				continue
			}
			var toggled dto.ToggleAisleResponse
			must(call(client, "POST", "/survey/aisles/toggle", dto.ToggleAisleRequest{Aisle: name}, &toggled))
			selected[name] = true
		}
		color.Green("Selected aisles: %d", len(selected))
		path = fmt.Sprintf("/survey/submit?n=%d", *n)
	}

	color.Yellow("\n4. Recommendations")
	must(call(client, "POST", path, nil, &recs))
	printSection("Top picks", recs.Initial)
	printSection("For your mood", recs.MoodRelated)
	printSection("Close to expiration", recs.CloseToExpiration)
	printSection("Buy again", recs.PurchaseHistory)
}

func call[T any](client *resty.Client, method, path string, body interface{}, out *T) error {
	var ok serverutils.Response[T]
	var failed serverutils.Response[any]

	req := client.R().SetResult(&ok).SetError(&failed)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		if failed.Kind != "" {
			return fmt.Errorf("%s (%s): %s", resp.Status(), failed.Kind, failed.Message)
		}
		return fmt.Errorf("%s: %s", resp.Status(), failed.Message)
	}
	*out = ok.Data
	return nil
}

func printSection(title string, products []dto.ProductResponse) {
	color.Cyan("\n%s (%d)", title, len(products))
	for _, p := range products {
		line := fmt.Sprintf("  - %s [%s / %s]", p.ProductName, p.Aisle, p.Department)
		switch {
		case p.OnSale:
			color.Green("%s  $%.2f → $%.2f", line, *p.Price, *p.DiscountPrice)
		case p.DaysUntilExpiration != nil:
			fmt.Printf("%s  expires in %d days\n", line, *p.DaysUntilExpiration)
		default:
			fmt.Println(line)
		}
	}
}

func must(err error) {
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
}
