// Package msftoolbox provides Go clients for the third-party APIs used in
// MSF data workflows: ACLED, DHIS2, GDELT, KoboToolbox, MODIS, Power BI,
// ReliefWeb, SharePoint, TopDesk, UniData and Azure services.
//
// Each vendor lives in its own package with a functional-option constructor:
//
//	client, err := kobo.New(
//	    kobo.WithBaseURL("https://kf.kobotoolbox.org/api/v2"),
//	    kobo.WithToken(apiToken),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for sub, err := range client.Submissions(ctx, assetUID) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(sub["_id"])
//	}
//
// # Error Handling
//
// All clients classify failed responses into the typed errors of the
// apierror package, which can be inspected with errors.As:
//
//	events, err := client.ListEvents(ctx, nil)
//	if err != nil {
//	    var authErr *apierror.AuthenticationError
//	    if errors.As(err, &authErr) {
//	        // Handle bad credentials
//	    }
//	}
//
// # Pagination
//
// Clients expose lazy iterators for paginated endpoints. This package holds
// the generic helpers for consuming them:
//
//	subs, err := msftoolbox.Collect(client.Submissions(ctx, assetUID))
//	first, err := msftoolbox.First(client.Submissions(ctx, assetUID))
package msftoolbox
