package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iotaaxel/limit-order-book/internal/common"
	lobnet "github.com/iotaaxel/limit-order-book/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the matching server")
	owner := flag.String("owner", "", "Owner username (compulsory)")
	action := flag.String("action", "place", "Action to perform: ['place', 'cancel']")

	// Order parameters.
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	tifStr := flag.String("tif", "gtc", "Time in force: 'gtc', 'ioc' or 'day'")
	price := flag.Int64("price", 100, "Limit price in ticks")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	// Cancel parameters.
	orderID := flag.String("uuid", "", "UUID of the order to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *owner)

	// Listen for reports asynchronously.
	go readReports(conn)

	side := common.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Sell
	}
	tif := parseTIF(*tifStr)

	switch strings.ToLower(*action) {
	case "place":
		for _, q := range parseQuantities(*qtyStr) {
			msg := lobnet.NewOrderMessage{
				Side:        side,
				TimeInForce: tif,
				Price:       *price,
				Quantity:    q,
				Owner:       *owner,
			}
			if err := lobnet.WriteFrame(conn, msg.Serialize()); err != nil {
				log.Printf("Failed to place order (Qty: %d): %v", q, err)
				continue
			}
			fmt.Printf("-> Sent %s %v order: %d @ %d\n", strings.ToUpper(*sideStr), tif, q, *price)
			// Small sleep so the server stamps distinct arrival times.
			time.Sleep(5 * time.Millisecond)
		}

	case "cancel":
		if *orderID == "" {
			log.Fatal("Error: -uuid is required for cancellation")
		}
		msg := lobnet.CancelOrderMessage{
			Side:    side,
			OrderID: *orderID,
		}
		if err := lobnet.WriteFrame(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send cancel request: %v", err)
		} else {
			fmt.Printf("-> Sent cancel request for %s\n", *orderID)
		}

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func parseTIF(input string) common.TimeInForce {
	switch strings.ToLower(input) {
	case "ioc":
		return common.IOC
	case "day":
		return common.DAY
	default:
		return common.GTC
	}
}

// parseQuantities splits a comma-separated string into a slice of uint64.
func parseQuantities(input string) []uint64 {
	parts := strings.Split(input, ",")
	var result []uint64
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid quantity '%s', skipping.", p)
		}
	}
	return result
}

func readReports(conn net.Conn) {
	// Frame-by-frame: the server writes acks and fills back-to-back and TCP
	// may deliver them in a single segment.
	for {
		payload, err := lobnet.ReadFrame(conn)
		if err != nil {
			log.Printf("Connection closed: %v", err)
			os.Exit(0)
		}
		report, err := lobnet.ParseReport(payload)
		if err != nil {
			log.Printf("Bad report: %v", err)
			continue
		}
		printReport(report)
	}
}

func printReport(r lobnet.Report) {
	ts := time.Unix(0, int64(r.Timestamp)).Format(time.RFC3339Nano)
	switch r.MessageType {
	case lobnet.OrderAck:
		fmt.Printf("<- ACK %s %v %d @ %d (%s)\n", r.OrderID, r.Side, r.Quantity, r.Price, ts)
	case lobnet.ExecutionReport:
		fmt.Printf("<- FILL %s %v %d @ %d vs %s (%s)\n", r.OrderID, r.Side, r.Quantity, r.Price, r.CounterOrderID, ts)
	case lobnet.ExpiryReport:
		fmt.Printf("<- EXPIRED %s %v (%s)\n", r.OrderID, r.Side, ts)
	case lobnet.ErrorReport:
		fmt.Printf("<- ERROR %s (%s)\n", r.Err, ts)
	default:
		fmt.Printf("<- UNKNOWN report type %d\n", r.MessageType)
	}
}
