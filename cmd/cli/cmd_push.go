package main

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sguter90/soilmaestro/pkg/models"
	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Simulate a device posting readings",
	Long: `Post a series of readings that drift randomly around the given base
values, the way a field device would. Useful to try out thresholds.`,
	RunE: runPush,
}

var (
	pushUser     string
	pushCount    int
	pushInterval time.Duration
	pushSoil     float64
	pushTemp     float64
	pushHum      float64
	pushDrift    float64
)

func init() {
	rootCmd.AddCommand(pushCmd)
	addServerFlag(pushCmd)

	pushCmd.Flags().StringVar(&pushUser, "user", "simulator", "user id sent with each reading")
	pushCmd.Flags().IntVar(&pushCount, "count", 10, "number of readings to send")
	pushCmd.Flags().DurationVar(&pushInterval, "interval", time.Second, "pause between readings")
	pushCmd.Flags().Float64Var(&pushSoil, "soil", 40, "base soil moisture")
	pushCmd.Flags().Float64Var(&pushTemp, "temp", 20, "base temperature")
	pushCmd.Flags().Float64Var(&pushHum, "hum", 55, "base humidity")
	pushCmd.Flags().Float64Var(&pushDrift, "drift", 2, "maximum change per reading and field")
}

// drift moves v by a random amount in [-limit, limit], rounded to one decimal
func drift(v, limit float64) float64 {
	v += (rand.Float64()*2 - 1) * limit
	return math.Round(v*10) / 10
}

func runPush(cmd *cobra.Command, args []string) error {
	client := apiClient(cmd)
	soil, temp, hum := pushSoil, pushTemp, pushHum
	stored := 0

	for i := 1; i <= pushCount; i++ {
		input := models.ReadingInput{
			UserID:       models.UserKey(pushUser),
			SoilMoisture: models.NewNumber(soil),
			Temperature:  models.NewNumber(temp),
			Humidity:     models.NewNumber(hum),
		}

		resp, err := client.PostReading(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("reading %d: %w", i, err)
		}

		state := "skipped"
		if resp.Stored {
			state = "stored"
			stored++
		}
		fmt.Printf("[%d/%d] soil=%g temp=%g hum=%g -> %s\n", i, pushCount, soil, temp, hum, state)

		soil, temp, hum = drift(soil, pushDrift), drift(temp, pushDrift), drift(hum, pushDrift)

		if i < pushCount {
			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case <-time.After(pushInterval):
			}
		}
	}

	fmt.Printf("\n%d of %d readings stored.\n", stored, pushCount)
	return nil
}
