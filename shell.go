package main

import (
	"errors"
	"fmt"

	"github.com/CodedInternet/golbis/comms"
	"github.com/abiosoft/ishell"
)

// queuePumpLevel runs a 0-20 level argument through the normal translator
// path and enqueues the resulting intensity.
func queuePumpLevel(queue *comms.IntensityQueue, level string) (float64, error) {
	cmd, err := comms.ParseCommand([]byte(fmt.Sprintf("Vibrate:%s;", level)))
	if err != nil {
		return 0, err
	}
	queue.Push(cmd.Intensity)
	return cmd.Intensity, nil
}

// debugShell builds the interactive shell available when DEBUG is set.
// Injected values go through the normal translator and queue path.
func debugShell(wsdm *comms.WSDMClient, pump *comms.PumpClient, queue *comms.IntensityQueue) *ishell.Shell {
	shell := ishell.New()
	shell.Println("lBIS shim debug shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "pump",
		Help: "pump <level 0-20>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errors.New("usage: pump <level 0-20>"))
				return
			}

			speed, err := queuePumpLevel(queue, c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("queued speed %.2f\n", speed)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "queue a zero speed command",
		Func: func(c *ishell.Context) {
			queue.Push(0)
			c.Println("queued stop")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print link states and queue depth",
		Func: func(c *ishell.Context) {
			w := wsdm.Status()
			p := pump.Status()
			c.Printf("wsdm: %s connects=%d frames=%d errors=%d\n", w.State, w.Connects, w.Frames, w.Errors)
			c.Printf("pump: %s connects=%d frames=%d errors=%d\n", p.State, p.Connects, p.Frames, p.Errors)
			c.Printf("queue depth: %d\n", queue.Depth())
		},
	})

	return shell
}
